package sandbox

import (
	"time"
)

// Kind is the severity of a captured console record
type Kind string

const (
	KindLog   Kind = "log"
	KindWarn  Kind = "warn"
	KindError Kind = "error"
)

// Stage tells which step of a run produced a fault
type Stage string

const (
	StageTransform Stage = "transform"
	StageExecution Stage = "execution"
)

// OutputRecord is one captured console message
type OutputRecord struct {
	Kind       Kind      `json:"kind"`
	Content    string    `json:"content"`
	Generation uint64    `json:"generation"`
	Time       time.Time `json:"time"`
}

// FaultRecord is the single terminal error of a run
type FaultRecord struct {
	Message string `json:"message"`
	Stage   Stage  `json:"stage"`
}

// Config defines sandbox configuration
type Config struct {
	Timeout          time.Duration // Wall-clock budget for the synchronous phase and for each async callback
	AsyncTimeout     time.Duration // How long timers may keep firing after the call returns; 0 disables timers
	MaxCallStackSize int           // goja call stack limit
	MaxOutputRecords int           // Records kept per run; 0 means unlimited
}

// DefaultConfig returns the default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		AsyncTimeout:     10 * time.Second,
		MaxCallStackSize: 1024,
		MaxOutputRecords: 1000,
	}
}

// Collaborator names injected into every execution unit, in call order.
const (
	ParamConsole  = "console"
	ParamReact    = "React"
	ParamReactDOM = "ReactDOM"
	ParamMount    = "mountNode"
)

var unitParams = []string{ParamConsole, ParamReact, ParamReactDOM, ParamMount}
