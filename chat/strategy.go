package chat

// Strategy identifies which backend invocation mode a send uses. The set is
// closed: all three modes speak the same delta callback shape, so dispatch is
// a plain enum rather than an interface hierarchy.
type Strategy int

const (
	// StrategyGateway streams through the proxy gateway. This path keeps the
	// app usable when the user has not supplied a direct credential.
	StrategyGateway Strategy = iota

	// StrategyNativeStream streams through the primary provider's own API.
	StrategyNativeStream

	// StrategySync makes one synchronous call producing a single final
	// message with no intermediate deltas.
	StrategySync
)

func (s Strategy) String() string {
	switch s {
	case StrategyGateway:
		return "gateway"
	case StrategyNativeStream:
		return "native-stream"
	case StrategySync:
		return "sync"
	default:
		return "unknown"
	}
}

// SelectStrategy decides the backend invocation mode for a send. It is a pure
// function of the three configuration inputs; first match wins:
//
//  1. force-gateway set, or no direct credential configured → gateway
//  2. streaming-capable client preferred → native streaming
//  3. otherwise → synchronous single-shot
func SelectStrategy(forceGateway, hasCredential, preferStreaming bool) Strategy {
	if forceGateway || !hasCredential {
		return StrategyGateway
	}
	if preferStreaming {
		return StrategyNativeStream
	}
	return StrategySync
}
