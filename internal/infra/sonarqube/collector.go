package sonarqube

// CollectOptions are the per-run knobs shared by all collectors.
type CollectOptions struct {
	ComponentKey    string
	Branch          string
	InNewCodePeriod bool
}
