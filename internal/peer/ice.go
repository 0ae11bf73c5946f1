package peer

import (
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/romashorodok/signaling-platform/pkg/variables"
)

// defaultICEServers builds the static ICE configuration handed to
// joining clients. STUN_URLS is a comma-separated list.
func defaultICEServers() []webrtc.ICEServer {
	raw := variables.Env(variables.STUN_URLS_NAME, variables.STUN_URLS_DEFAULT)

	servers := make([]webrtc.ICEServer, 0)
	for _, url := range strings.Split(raw, ",") {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
	}
	return servers
}
