package chat

import "testing"

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		name            string
		forceGateway    bool
		hasCredential   bool
		preferStreaming bool
		expected        Strategy
	}{
		{
			name:          "force gateway overrides everything",
			forceGateway:  true,
			hasCredential: true, preferStreaming: true,
			expected: StrategyGateway,
		},
		{
			name:          "no credential falls back to gateway",
			hasCredential: false, preferStreaming: true,
			expected: StrategyGateway,
		},
		{
			name:          "credential and streaming preference",
			hasCredential: true, preferStreaming: true,
			expected: StrategyNativeStream,
		},
		{
			name:          "credential without streaming preference",
			hasCredential: true, preferStreaming: false,
			expected: StrategySync,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectStrategy(tt.forceGateway, tt.hasCredential, tt.preferStreaming)
			if got != tt.expected {
				t.Errorf("SelectStrategy(%v, %v, %v) = %s, want %s",
					tt.forceGateway, tt.hasCredential, tt.preferStreaming, got, tt.expected)
			}
		})
	}
}

func TestStrategyString(t *testing.T) {
	if StrategyGateway.String() != "gateway" {
		t.Errorf("unexpected name: %s", StrategyGateway)
	}
	if StrategyNativeStream.String() != "native-stream" {
		t.Errorf("unexpected name: %s", StrategyNativeStream)
	}
	if StrategySync.String() != "sync" {
		t.Errorf("unexpected name: %s", StrategySync)
	}
	if Strategy(99).String() != "unknown" {
		t.Errorf("unexpected name for out-of-range value: %s", Strategy(99))
	}
}
