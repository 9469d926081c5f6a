package core

// CommandType identifies an engine control command.
type CommandType string

const (
	CommandDeploy   CommandType = "DEPLOY"
	CommandUndeploy CommandType = "UNDEPLOY"
	CommandDone     CommandType = "DONE"
	CommandStop     CommandType = "STOP"
)

// Command travels on the engine command bus. Deploy carries the profile and
// the deployment to wire; the teardown commands carry the deployment id, and
// Stop additionally the error that caused it.
type Command struct {
	Type         CommandType
	Profile      UserProfile
	Deployment   Deployment
	DeploymentID int64
	Err          error
}
