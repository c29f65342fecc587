package app_generate

import (
	"fmt"

	jobrt "github.com/yungbote/anything-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	requestID, ok := jc.PayloadUUID("request_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("missing request_id"))
		return nil
	}

	jc.Progress("generate", 5, "Generating app")
	res, err := p.gen.RunGenerate(jc.Ctx, requestID)
	if err != nil {
		p.log.Warn("Generation task could not run", "request_id", requestID, "job_id", jc.Job.ID, "error", err)
		jc.Fail("generate", err)
		return nil
	}
	if !res.Success {
		p.log.Info("Generation finished unsuccessfully", "request_id", requestID, "error", res.Error)
	}
	jc.Succeed("done", res)
	return nil
}
