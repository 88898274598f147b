package stream

import "testing"

func TestParseChannelType(t *testing.T) {
	tests := []struct {
		in      string
		want    ChannelType
		wantErr bool
	}{
		{"", ChannelAuto, false},
		{"auto", ChannelAuto, false},
		{" OTO ", ChannelOto, false},
		{"device", ChannelOto, false},
		{"mock", ChannelMock, false},
		{"null", ChannelMock, false},
		{"alsa", ChannelAuto, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannelType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChannelType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseChannelType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewChannelMock(t *testing.T) {
	ch, err := NewChannel(ChannelMock, ChannelOptions{})
	if err != nil {
		t.Fatalf("NewChannel failed: %v", err)
	}
	m, ok := ch.(*MockChannel)
	if !ok {
		t.Fatalf("expected *MockChannel, got %T", ch)
	}
	if !m.Autoplay || m.Record {
		t.Errorf("Autoplay=%v Record=%v, want true/false", m.Autoplay, m.Record)
	}
}

func TestNewChannelAutoInCI(t *testing.T) {
	t.Setenv("CI", "true")

	ch, err := NewChannel(ChannelAuto, ChannelOptions{})
	if err != nil {
		t.Fatalf("NewChannel failed: %v", err)
	}
	if _, ok := ch.(*MockChannel); !ok {
		t.Errorf("expected mock channel under CI, got %T", ch)
	}
}

func TestNewChannelUnknownType(t *testing.T) {
	if _, err := NewChannel(ChannelType(9), ChannelOptions{}); err == nil {
		t.Error("expected error for unknown channel type")
	}
}

func TestIsCI(t *testing.T) {
	for _, v := range []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE", "PCMFEED_MOCK_AUDIO"} {
		t.Setenv(v, "")
	}
	if IsCI() {
		t.Fatal("IsCI should be false with a clean environment")
	}

	t.Setenv("GITHUB_ACTIONS", "false")
	if IsCI() {
		t.Error(`"false" should not count as CI`)
	}

	t.Setenv("PCMFEED_MOCK_AUDIO", "true")
	if !IsCI() {
		t.Error("PCMFEED_MOCK_AUDIO=true should force mock audio")
	}
}
