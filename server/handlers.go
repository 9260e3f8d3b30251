package server

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/middleware"
	"github.com/nicolagi/pathkv/storage"
	log "github.com/sirupsen/logrus"
)

// ReplacedHeader is set on POST responses to "true" if the POST replaced an
// existing value, to "false" if it created the key.
const ReplacedHeader = "X-Pathkv-Replaced"

var (
	errEmptyKey   = errors.New("empty key")
	errInvalidKey = errors.New("key is not valid UTF-8")
)

// keyFromPath strips exactly one leading slash.
func keyFromPath(path string) ([]byte, error) {
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return nil, errEmptyKey
	}
	if !utf8.ValidString(key) {
		return nil, errInvalidKey
	}
	return []byte(key), nil
}

func requestLogger(r *http.Request) *log.Entry {
	return log.WithFields(log.Fields{
		"op":         r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)
	key, err := keyFromPath(r.URL.Path)
	if err != nil {
		logger.WithField("err", err).Warn("Bad request")
		respond(w, logger, http.StatusBadRequest, []byte(fmt.Sprintf("%q: %v", r.URL.Path, err)))
		return
	}
	var value []byte
	err = s.shared.View(func(store storage.Store) (err error) {
		value, err = store.Get(key)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		logger.WithField("err", err).Debug("Not found")
		respond(w, logger, http.StatusNotFound, nil)
		return
	}
	if err != nil {
		logger.WithField("err", err).Error()
		respond(w, logger, http.StatusInternalServerError, []byte(fmt.Sprintf("%q: %v", key, err)))
		return
	}
	logger.Debug("Success")
	respond(w, logger, http.StatusOK, value)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)
	key, err := keyFromPath(r.URL.Path)
	if err != nil {
		logger.WithField("err", err).Warn("Bad request")
		respond(w, logger, http.StatusBadRequest, []byte(fmt.Sprintf("%q: %v", r.URL.Path, err)))
		return
	}

	// Nothing below touches the store until the whole body is in.
	var body io.Reader = r.Body
	if limit := s.opts.maxValueSize; limit > 0 {
		body = io.LimitReader(r.Body, limit+1)
	}
	value, err := ioutil.ReadAll(body)
	if err != nil {
		logger.WithField("err", err).Warn("Could not read body")
		respond(w, logger, http.StatusBadRequest, []byte(fmt.Sprintf("%q: could not read body: %v", key, err)))
		return
	}
	if limit := s.opts.maxValueSize; limit > 0 && int64(len(value)) > limit {
		logger.WithField("limit", limit).Warn("Value too large")
		respond(w, logger, http.StatusRequestEntityTooLarge, []byte(fmt.Sprintf("%q: value larger than %d bytes", key, limit)))
		return
	}
	if !utf8.Valid(value) {
		logger.Warn("Value is not valid UTF-8")
		respond(w, logger, http.StatusBadRequest, []byte(fmt.Sprintf("%q: value is not valid UTF-8", key)))
		return
	}

	var (
		previous []byte
		replaced bool
	)
	err = s.shared.Update(func(store storage.Store) (err error) {
		previous, replaced, err = store.Put(key, value)
		return err
	})
	if err != nil {
		logger.WithField("err", err).Error()
		respond(w, logger, http.StatusInternalServerError, []byte(fmt.Sprintf("%q: %v", key, err)))
		return
	}
	logger = logger.WithField("replaced", replaced)
	if log.IsLevelEnabled(log.DebugLevel) {
		// Counting may walk the whole backend, so not under the update lock.
		if size, err := s.shared.Size(); err != nil {
			logger = logger.WithField("size_err", err)
		} else {
			logger = logger.WithField("size", size)
		}
	}
	logger.Debug("Success")
	w.Header().Set(ReplacedHeader, strconv.FormatBool(replaced))
	respond(w, logger, http.StatusOK, previous)
}

func handleBadRequest(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r)
	logger.Warn("Bad request")
	var body []byte
	if r.Method != http.MethodHead {
		body = []byte(fmt.Sprintf("%s %q: expecting GET or POST of a key", r.Method, r.URL.Path))
	}
	respond(w, logger, http.StatusBadRequest, body)
}

func respond(w http.ResponseWriter, logger *log.Entry, status int, body []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			logger.WithField("err", err).Error("Failed writing response")
		}
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		requestLogger(r).WithFields(log.Fields{
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start),
		}).Debug("Served")
	})
}
