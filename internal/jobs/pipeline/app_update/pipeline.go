package app_update

import (
	"fmt"

	jobrt "github.com/yungbote/anything-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	updateID, ok := jc.PayloadUUID("update_request_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("missing update_request_id"))
		return nil
	}

	jc.Progress("update", 5, "Updating app")
	res, err := p.gen.RunUpdate(jc.Ctx, updateID)
	if err != nil {
		p.log.Warn("Update task could not run", "update_request_id", updateID, "job_id", jc.Job.ID, "error", err)
		jc.Fail("update", err)
		return nil
	}
	jc.Succeed("done", res)
	return nil
}
