package loopback

// Kind discriminates agent messages. The host controls the agent with
// enable/disable messages and the agent streams encoded frames back as
// pcmData messages; nothing else crosses the boundary.
type Kind int

const (
	KindEnableLoopback Kind = iota
	KindDisableLoopback
	KindPCMData
)

func (k Kind) String() string {
	switch k {
	case KindEnableLoopback:
		return "enableLoopback"
	case KindDisableLoopback:
		return "disableLoopback"
	case KindPCMData:
		return "pcmData"
	default:
		return "unknown"
	}
}

// Message is one envelope on an agent channel. PCM is populated only for
// KindPCMData and carries exactly one frame of target-rate samples.
type Message struct {
	Kind Kind
	PCM  []int16
}
