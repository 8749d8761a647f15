package transport

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// DefaultICEServers are public STUN servers used when none are configured.
// No TURN: the link is meant to be direct.
var DefaultICEServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Options configures the PeerConnection behind a Transport.
type Options struct {
	// ICEServers are STUN/TURN URLs. Empty means DefaultICEServers.
	ICEServers []string

	// NACK enables the NACK responder/generator interceptors for media.
	NACK bool

	// LoggerFactory is handed to pion and used for transport logs. If nil,
	// pion's default factory is used.
	LoggerFactory logging.LoggerFactory
}

// newAPI builds a pion API with default codecs and the configured interceptors.
func newAPI(opts Options) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	if opts.NACK {
		responder, err := nack.NewResponderInterceptor()
		if err != nil {
			return nil, fmt.Errorf("create nack responder: %w", err)
		}
		i.Add(responder)

		generator, err := nack.NewGeneratorInterceptor()
		if err != nil {
			return nil, fmt.Errorf("create nack generator: %w", err)
		}
		i.Add(generator)
	}

	s := webrtc.SettingEngine{}
	if opts.LoggerFactory != nil {
		s.LoggerFactory = opts.LoggerFactory
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(s),
	), nil
}

// newPeerConnection creates a PeerConnection configured with opts.ICEServers.
func newPeerConnection(opts Options) (*webrtc.PeerConnection, error) {
	api, err := newAPI(opts)
	if err != nil {
		return nil, err
	}

	urls := opts.ICEServers
	if len(urls) == 0 {
		urls = DefaultICEServers
	}

	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: urls},
		},
	})
}
