package types

// Session is a logical binding between an open notebook and a running kernel.
type Session struct {
	ID     string `json:"id"`
	Kernel Kernel `json:"kernel"`
}

// Kernel identifies a remote kernel process.
type Kernel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionRequest is the body of a session-creation call.
type SessionRequest struct {
	Path   string     `json:"path"`
	Name   string     `json:"name"`
	Type   string     `json:"type"`
	Kernel KernelSpec `json:"kernel"`
}

// KernelSpec names the kernelspec a session should start.
type KernelSpec struct {
	Name string `json:"name"`
}
