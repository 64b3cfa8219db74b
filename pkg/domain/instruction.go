package domain

// InstructionType tells which part of a node an instruction comes from.
type InstructionType string

const (
	InstructionOnEnter    InstructionType = "on-enter"
	InstructionOnReceive  InstructionType = "on-receive"
	InstructionTransition InstructionType = "transition"
	InstructionWait       InstructionType = "wait"
)

// Instruction is the raw form of one unit of node work.
// For transitions, Fn holds the condition and Node the target.
type Instruction struct {
	Type InstructionType `json:"type"`
	Fn   string          `json:"fn"`
	Node string          `json:"node,omitempty"`
	Args map[string]any  `json:"args,omitempty"`
}

// ActionServer is a remote executor of actions, addressed by id.
type ActionServer struct {
	ID      string `json:"id" yaml:"id"`
	BaseURL string `json:"baseUrl" yaml:"base_url"`
}
