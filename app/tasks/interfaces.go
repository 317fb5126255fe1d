package tasks

import "context"

// TaskRunnerInterface is what the application and the API need from the runner.
type TaskRunnerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RunOnce(ctx context.Context, tasks []TaskInterface) error
}
