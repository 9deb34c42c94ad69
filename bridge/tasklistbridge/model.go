package tasklistbridge

import "errors"

type createTaskRequest struct {
	Text string `json:"text"`
}

type completionRequest struct {
	Completed *bool `json:"completed"`
}

func (c completionRequest) Validate() error {
	if c.Completed == nil {
		return errors.New("completed is required")
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
}
