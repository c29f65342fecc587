package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/anything-backend/internal/platform/logger"
)

func TestFormat(t *testing.T) {
	id := uuid.MustParse("7b0c1c52-57a4-4a52-9a0f-2f5c8f0d0c11")
	out := Format("Make {prompt} for {id} with {tables} and {missing}", map[string]any{
		"prompt": "a <contact> list",
		"id":     id,
		"tables": []map[string]string{{"name": "contacts"}},
		"unused": 1,
	})
	assert.Equal(t, "Make a <contact> list for 7b0c1c52-57a4-4a52-9a0f-2f5c8f0d0c11 with [\n  {\n    \"name\": \"contacts\"\n  }\n] and {missing}", out)
	assert.Equal(t, []string{"missing"}, Unresolved(out))
}

func TestFormatLeavesTemplateSyntaxAlone(t *testing.T) {
	in := `Use {{ contacts }} and {"name": "x"} for {app}`
	out := Format(in, map[string]any{"app": "Contacts"})
	assert.Equal(t, `Use {{ contacts }} and {"name": "x"} for Contacts`, out)
	assert.Empty(t, Unresolved(out))
}

func TestFormatNoBindings(t *testing.T) {
	assert.Equal(t, "{a} {a}", Format("{a} {a}", nil))
	assert.Equal(t, []string{"a"}, Unresolved("{a} {a}"))
}

func TestEmbeddedStoreHasEveryPrompt(t *testing.T) {
	s, err := NewStore(logger.NewNop())
	require.NoError(t, err)
	for _, name := range All() {
		tpl, err := s.Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, tpl.Name)
		assert.NotEmpty(t, tpl.System, name)
		assert.NotEmpty(t, tpl.User, name)
	}
}

func TestStoreNotFound(t *testing.T) {
	s, err := NewStore(logger.NewNop())
	require.NoError(t, err)
	_, err = s.Get("nope")
	var nf *TemplateNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, PromptName("nope"), nf.Name)
}

func TestStoreOverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_identity.yaml"), []byte("system: custom\nuser: name {prompt}\ntemperature: 0.2\n"), 0o644))

	s, err := NewStore(logger.NewNop(), WithOverrideDir(dir))
	require.NoError(t, err)

	tpl, err := s.Get(PromptAppIdentity)
	require.NoError(t, err)
	assert.Equal(t, "custom", tpl.System)
	require.NotNil(t, tpl.Temperature)
	assert.InDelta(t, 0.2, *tpl.Temperature, 1e-9)

	// cached until the TTL expires
	require.NoError(t, os.Remove(filepath.Join(dir, "app_identity.yaml")))
	tpl, err = s.Get(PromptAppIdentity)
	require.NoError(t, err)
	assert.Equal(t, "custom", tpl.System)

	// falls through to the embedded set
	tpl, err = s.Get(PromptDataSchema)
	require.NoError(t, err)
	assert.Contains(t, tpl.User, "{app_name}")
}

func TestTemplateRender(t *testing.T) {
	s, err := NewStoreFromBytes(logger.NewNop(), []byte("greet:\n  system: be brief\n  user: hello {who} from {where}\n"))
	require.NoError(t, err)
	tpl, err := s.Get("greet")
	require.NoError(t, err)
	sys, user, missing := tpl.Render(map[string]any{"who": "ada"})
	assert.Equal(t, "be brief", sys)
	assert.Equal(t, "hello ada from {where}", user)
	assert.Equal(t, []string{"where"}, missing)
}
