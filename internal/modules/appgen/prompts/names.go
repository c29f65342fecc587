package prompts

type PromptName string

const (
	// Generation
	PromptAppIdentity   PromptName = "app_identity"
	PromptDataSchema    PromptName = "data_schema"
	PromptPageList      PromptName = "page_list"
	PromptPageTemplate  PromptName = "page_template"
	PromptPageScript    PromptName = "page_script"
	PromptPageQueries   PromptName = "page_queries"
	PromptAppStylesheet PromptName = "app_stylesheet"

	// Update
	PromptUpdateIntent PromptName = "update_intent"
)

// All lists every prompt the pipeline issues, in stage order.
func All() []PromptName {
	return []PromptName{
		PromptAppIdentity,
		PromptDataSchema,
		PromptPageList,
		PromptPageTemplate,
		PromptPageScript,
		PromptPageQueries,
		PromptAppStylesheet,
		PromptUpdateIntent,
	}
}
