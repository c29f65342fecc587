package appgen

import (
	"errors"
	"fmt"

	"github.com/yungbote/anything-backend/internal/modules/appgen/parse"
	"github.com/yungbote/anything-backend/internal/modules/appgen/prompts"
	"github.com/yungbote/anything-backend/internal/modules/appgen/reconcile"
	"github.com/yungbote/anything-backend/internal/platform/llm"
	"github.com/yungbote/anything-backend/internal/services"
)

// Every failure the pipeline surfaces is one of these, possibly wrapped
// with the stage and page it happened in.
type (
	TemplateNotFoundError    = prompts.TemplateNotFoundError
	GenerationBackendError   = llm.BackendError
	ParseError               = parse.ParseError
	InsufficientBalanceError = services.InsufficientBalanceError
	ReconciliationError      = reconcile.ReconciliationError
)

var (
	ErrRequestNotPending = errors.New("request is not pending")
	ErrEmptySchema       = errors.New("model returned no tables")
	ErrEmptyPageList     = errors.New("model returned no pages")
	ErrEmptyTemplate     = errors.New("model returned an empty template")
)

// StageError records where a run failed. Err is the underlying typed error.
type StageError struct {
	Stage string
	Page  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Page != "" {
		return fmt.Sprintf("%s (page %s): %v", e.Stage, e.Page, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage, page string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Page: page, Err: err}
}
