package realtime

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/pion/ice/v2"
	"github.com/pion/webrtc/v3"

	"github.com/minimeet/backend/pkg/response"
)

const defaultSTUN = "stun:stun.l.google.com:19302"

// ICEServers groups the configured STUN and TURN urls into the ICE server list
// handed to browsers before they create peer connections. TURN entries carry
// the shared credentials; STUN entries never do.
func ICEServers(urls []string, username, credential string) ([]webrtc.ICEServer, error) {
	var stun, turn []string
	for _, raw := range urls {
		u, err := ice.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("ice url %q: %w", raw, err)
		}
		switch u.Scheme {
		case ice.SchemeTypeTURN, ice.SchemeTypeTURNS:
			turn = append(turn, raw)
		default:
			stun = append(stun, raw)
		}
	}
	if len(turn) > 0 && (username == "" || credential == "") {
		return nil, fmt.Errorf("turn urls configured without credentials")
	}

	var servers []webrtc.ICEServer
	if len(stun) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           turn,
			Username:       username,
			Credential:     credential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	if len(servers) == 0 {
		servers = []webrtc.ICEServer{{URLs: []string{defaultSTUN}}}
	}
	return servers, nil
}

// ICEHandler handles GET /webrtc/ice-servers.
func ICEHandler(servers []webrtc.ICEServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, gin.H{"ice_servers": servers})
	}
}
