package conn

import (
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/net/dns/dnsmessage"
)

// USBTargetIP is the roboRIO's fixed address over the USB RNDIS link.
const USBTargetIP = "172.22.11.2"

const mdnsServiceName = "_ni._tcp.local."
const mdnsMulticastAddr = "224.0.0.251:5353"
const mdnsResolveTimeout = 2 * time.Second

// resolveTarget implements spec.md §4.4 step 1 / §6: USB override, then mDNS
// with a 2-second overall timeout, then the static 10.TE.AM.2 fallback.
func resolveTarget(team int, usbMode bool) string {
	if usbMode {
		return USBTargetIP
	}
	if ip, ok := resolveMDNS(team, mdnsResolveTimeout); ok {
		return ip
	}
	return staticFallbackIP(team)
}

// staticFallbackIP computes 10.TE.AM.2 where TE = team/100, AM = team%100.
func staticFallbackIP(team int) string {
	te := team / 100
	am := team % 100
	return fmt.Sprintf("10.%d.%d.2", te, am)
}

// resolveMDNS queries _ni._tcp.local. over multicast DNS and returns an
// address matching the team number. After each response, an exact
// "roboRIO-<team>-FRC.local." hostname among the answers received so far is
// preferred (spec.md §9 REDESIGN recommendation); otherwise the first
// address whose hostname or SRV service instance name contains the decimal
// team number is returned. A looser match in an earlier response is
// returned without waiting for an exact match in a later one.
func resolveMDNS(team int, timeout time.Duration) (string, bool) {
	exactHost := fmt.Sprintf("roboRIO-%d-FRC.local.", team)
	teamStr := fmt.Sprintf("%d", team)

	pc, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return "", false
	}
	defer pc.Close()

	query, err := buildPTRQuery(mdnsServiceName)
	if err != nil {
		return "", false
	}
	dst, err := net.ResolveUDPAddr("udp4", mdnsMulticastAddr)
	if err != nil {
		return "", false
	}
	if _, err := pc.WriteTo(query, dst); err != nil {
		return "", false
	}

	deadline := time.Now().Add(timeout)
	pc.SetReadDeadline(deadline)

	// Names discovered via SRV records point at a target hostname; A
	// records resolve that hostname to an address. Both can arrive in any
	// order and in separate packets within the query window.
	targets := map[string]string{}  // instance/service name -> target hostname
	addresses := map[string]string{} // hostname -> ip

	buf := make([]byte, 2048)
	for time.Now().Before(deadline) {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			break // deadline exceeded or socket error
		}
		parseMDNSResponse(buf[:n], targets, addresses)

		if ip, ok := addresses[strings.ToLower(exactHost)]; ok {
			return ip, true
		}
		for host, ip := range addresses {
			if strings.Contains(host, teamStr) {
				return ip, true
			}
		}
		for svc, host := range targets {
			if ip, ok := addresses[strings.ToLower(host)]; ok && (strings.Contains(svc, teamStr) || strings.Contains(host, teamStr)) {
				return ip, true
			}
		}
	}
	return "", false
}

func buildPTRQuery(service string) ([]byte, error) {
	name, err := dnsmessage.NewName(service)
	if err != nil {
		return nil, err
	}
	msg := dnsmessage.Message{
		Header: dnsmessage.Header{ID: 0, RecursionDesired: false},
		Questions: []dnsmessage.Question{
			{Name: name, Type: dnsmessage.TypePTR, Class: dnsmessage.ClassINET},
		},
	}
	return msg.Pack()
}

func parseMDNSResponse(data []byte, targets, addresses map[string]string) {
	var p dnsmessage.Parser
	if _, err := p.Start(data); err != nil {
		return
	}
	if err := p.SkipAllQuestions(); err != nil {
		return
	}
	for {
		ah, err := p.AnswerHeader()
		if err != nil {
			return
		}
		switch ah.Type {
		case dnsmessage.TypeSRV:
			r, err := p.SRVResource()
			if err != nil {
				return
			}
			targets[strings.ToLower(ah.Name.String())] = strings.ToLower(r.Target.String())
		case dnsmessage.TypeA:
			r, err := p.AResource()
			if err != nil {
				return
			}
			ip := net.IP(r.A[:])
			addresses[strings.ToLower(ah.Name.String())] = ip.String()
		default:
			if err := p.SkipAnswer(); err != nil {
				return
			}
		}
	}
}
