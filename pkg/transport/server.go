package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/lokutor-stream/pkg/pipeline"
)

// ProviderFactory builds the ASR/MT/TTS adapters for a negotiated session.
// Kept as a function rather than a fixed provider set so cmd/server can wire
// concrete providers without this package importing pkg/providers/*.
type ProviderFactory func(sourceLang, targetLang pipeline.Language) (pipeline.ASRProvider, pipeline.MTProvider, pipeline.TTSProvider, error)

// Server serves the /ws/stream session endpoint. One Session per
// connection; Pool is shared across all of them to bound total concurrent
// model calls.
type Server struct {
	cfg       pipeline.Config
	pool      *pipeline.Pool
	providers ProviderFactory
	logger    pipeline.Logger
}

// NewServer builds a Server. logger may be nil (defaults to pipeline.NoOpLogger).
func NewServer(cfg pipeline.Config, pool *pipeline.Pool, providers ProviderFactory, logger pipeline.Logger) *Server {
	if logger == nil {
		logger = pipeline.NoOpLogger{}
	}
	return &Server{cfg: cfg, pool: pool, providers: providers, logger: logger}
}

// ServeHTTP upgrades the request to a WebSocket and runs the session's
// duplex loop until the connection closes, a protocol error occurs, or the
// client sends "stop".
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	s.handleConn(r.Context(), conn)
}

func (s *Server) handleConn(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sess *pipeline.Session
	configured := false

	// Single emitter goroutine: one writer per connection, draining
	// Session.Events() in order, generalizing the teacher's
	// single-emit-channel pattern to a wire sink instead of a local callback.
	// Joined via errgroup rather than a hand-rolled done channel, the same
	// fan-in idiom the pack reaches for elsewhere.
	var wg errgroup.Group
	startEmitter := func(sess *pipeline.Session) {
		wg.Go(func() error {
			for e := range sess.Events() {
				s.writeEvent(ctx, conn, e)
			}
			return nil
		})
	}

	defer func() {
		if sess != nil {
			sess.Close()
			wg.Wait()
		}
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		switch msgType {
		case websocket.MessageBinary:
			if !configured {
				s.writeProtocolError(ctx, conn, "audio received before config")
				return
			}
			if err := sess.Write(data); err != nil {
				return
			}

		case websocket.MessageText:
			parsed, err := decodeControlOrAudio(data)
			if err != nil {
				s.writeProtocolError(ctx, conn, err.Error())
				return
			}

			switch f := parsed.(type) {
			case configFrame:
				if configured {
					s.writeProtocolError(ctx, conn, "config frame sent more than once")
					return
				}
				configured = true

				srcLang := pipeline.Language(f.SourceLang)
				tgtLang := pipeline.Language(f.TargetLang)
				asrP, mtP, ttsP, err := s.providers(srcLang, tgtLang)
				if err != nil {
					s.writeProtocolError(ctx, conn, "failed to build providers: "+err.Error())
					return
				}

				sess = pipeline.NewSession(ctx, s.cfg, pipeline.SessionConfig{
					SourceLang: srcLang,
					TargetLang: tgtLang,
				}, asrP, mtP, ttsP, s.pool, s.logger)
				startEmitter(sess)
				sess.Start()

			case audioFrame:
				if !configured {
					s.writeProtocolError(ctx, conn, "audio received before config")
					return
				}
				if f.SampleRate != 0 && f.SampleRate != s.cfg.SampleRateIn {
					s.writeProtocolError(ctx, conn, "sample rate mismatch")
					return
				}
				pcm, err := decodePCM16Base64(f)
				if err != nil {
					s.writeProtocolError(ctx, conn, "malformed pcm16_base64: "+err.Error())
					return
				}
				if err := sess.Write(pcm); err != nil {
					return
				}

			case stopFrame:
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, e pipeline.Event) {
	if e.Type == pipeline.EventTTSAudioChunk {
		if d, ok := e.Data.(pipeline.TTSAudioChunkData); ok {
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = conn.Write(wctx, websocket.MessageBinary, encodeBinaryAudioChunk(d))
			cancel()
		}
	}

	payload, err := encodeEvent(e)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	_ = conn.Write(wctx, websocket.MessageText, payload)
	cancel()
}

func (s *Server) writeProtocolError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := encodeEvent(pipeline.Event{Type: pipeline.EventError, Data: pipeline.ErrorData{Message: msg}})
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	_ = conn.Write(wctx, websocket.MessageText, payload)
	cancel()
	conn.Close(websocket.StatusPolicyViolation, msg)
}
