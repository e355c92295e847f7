// Package audioserver serves a single synthesized audio file over HTTP so
// speakers on the local network can fetch it by URL.
package audioserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
)

// ErrServerStart means no candidate port could be bound.
var ErrServerStart = errors.New("could not start audio server")

const (
	audioPath   = "/audio.mp3"
	maxAttempts = 3
)

// Server serves one audio file for the lifetime of a single announcement.
// The artifact path is fixed at construction and never changes while the
// serve loop runs; shutdown is the caller's responsibility.
type Server struct {
	audioFile  string
	httpServer *http.Server
	url        string
}

// New returns a server that will serve the given audio file at /audio.mp3.
func New(audioFile string) *Server {
	return &Server{audioFile: audioFile}
}

// Start binds the machine's LAN-facing address and begins serving on a
// background goroutine. Up to three candidate ports are tried before giving
// up with ErrServerStart. It returns the URL speakers should fetch.
func (s *Server) Start() (string, error) {
	ip := localIP()

	var lastErr error
	for attempt := range maxAttempts {
		port := candidatePort(attempt, os.Getpid())
		ln, err := net.Listen("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err != nil {
			log.Debug("Port unavailable", "port", port, "error", err)
			lastErr = err
			continue
		}

		s.httpServer = &http.Server{Handler: s.routes()}
		go func() {
			if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Audio server error", "error", err)
			}
		}()

		s.url = fmt.Sprintf("http://%s:%d%s", ip, port, audioPath)
		log.Info("Audio server started", "url", s.url)
		return s.url, nil
	}
	return "", fmt.Errorf("%w: %v", ErrServerStart, lastErr)
}

// URL returns the address speakers should fetch; valid after Start.
func (s *Server) URL() string { return s.url }

// Shutdown stops the serve loop. Nothing shuts the server down implicitly.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+audioPath, s.handleAudio)
	return mux
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.audioFile)
	if err != nil {
		log.Error("Could not read audio file", "path", s.audioFile, "error", err)
		http.Error(w, "error reading audio file", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// candidatePort spreads bind attempts across a small deterministic range so
// repeated runs of one process land on the same port while concurrent
// processes rarely collide.
func candidatePort(attempt, pid int) int {
	return 8000 + attempt*100 + pid%100
}

// localIP finds the machine's outward-facing address with a throwaway UDP
// dial; no packet is sent. Falls back to loopback when the host has no
// route, which at least keeps --play-local style local testing working.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
