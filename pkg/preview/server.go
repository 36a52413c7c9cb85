package preview

import (
	"archive/tar"
	"compress/gzip"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tweska/TildeverseGallery/pkg/logger"
)

// Site is a built gallery archive held in memory
type Site struct {
	files map[string][]byte
	names []string
}

// Load reads the gzip compressed tar at archivePath
func Load(archivePath string) (*Site, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	defer gz.Close()

	site := &Site{files: make(map[string][]byte)}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		name := path.Clean("/" + hdr.Name)
		site.files[name] = data
		site.names = append(site.names, name)
	}
	sort.Strings(site.names)
	return site, nil
}

// Names returns the served paths in sorted order
func (s *Site) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// home is the first page of the gallery
func (s *Site) home() string {
	for _, candidate := range []string{"/index.html", "/A.html"} {
		if _, ok := s.files[candidate]; ok {
			return candidate
		}
	}
	for _, n := range s.names {
		if strings.HasSuffix(n, ".html") {
			return n
		}
	}
	return ""
}

// Server serves a Site over HTTP for review before publishing
type Server struct {
	site   *Site
	logger logger.Logger
}

// NewServer creates a preview server for site
func NewServer(site *Site, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Server{site: site, logger: log.WithField("component", "preview")}
}

// Handler returns the gin engine serving the site
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", func(c *gin.Context) {
		home := s.site.home()
		if home == "" {
			c.String(http.StatusNotFound, "archive has no pages")
			return
		}
		c.Redirect(http.StatusFound, home)
	})
	r.GET("/_entries", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"entries": s.site.Names()})
	})
	r.NoRoute(s.serveFile)

	return r
}

func (s *Server) serveFile(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + c.Request.URL.Path)
	data, ok := s.site.files[name]
	if !ok {
		c.String(http.StatusNotFound, "not found")
		return
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	c.Data(http.StatusOK, ctype, data)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.DebugWithFields("Preview request", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("Preview server listening", map[string]interface{}{
			"addr":  addr,
			"files": len(s.site.names),
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
