package conn

import "testing"

func TestStaticFallbackIP(t *testing.T) {
	cases := []struct {
		team int
		want string
	}{
		{254, "10.2.54.2"},
		{1868, "10.18.68.2"},
		{4, "10.0.4.2"},
		{100, "10.1.0.2"},
	}
	for _, c := range cases {
		if got := staticFallbackIP(c.team); got != c.want {
			t.Errorf("staticFallbackIP(%d) = %q, want %q", c.team, got, c.want)
		}
	}
}

func TestResolveTargetUSBOverrideShortCircuits(t *testing.T) {
	got := resolveTarget(1868, true)
	if got != USBTargetIP {
		t.Errorf("resolveTarget with usbMode=true = %q, want %q", got, USBTargetIP)
	}
}

func TestBuildPTRQueryProducesNonEmptyMessage(t *testing.T) {
	data, err := buildPTRQuery(mdnsServiceName)
	if err != nil {
		t.Fatalf("buildPTRQuery: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected a non-empty DNS query message")
	}
}

func TestParseMDNSResponseIgnoresGarbage(t *testing.T) {
	targets := map[string]string{}
	addresses := map[string]string{}
	parseMDNSResponse([]byte{0x00, 0x01, 0x02}, targets, addresses)
	if len(targets) != 0 || len(addresses) != 0 {
		t.Fatalf("expected garbage input to leave both maps empty")
	}
}
