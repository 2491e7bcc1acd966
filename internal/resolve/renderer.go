package resolve

import (
	"time"

	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/pathutil"
)

// Static mode defaults, relative to the renderer working directory.
const (
	defaultRendererOutDir = "dist"
	defaultRendererEntry  = "index.html"
)

// resolveRenderer applies defaults and the server/static precedence. A URL
// selects server mode; only without one are the output directory and entry
// populated.
func resolveRenderer(in *config.Renderer, cwd string) *Renderer {
	r := &Renderer{
		Cwd:             cwd,
		URL:             append([]string(nil), in.URL...),
		DevURL:          in.DevURL,
		WaitTimeout:     DefaultWaitTimeout,
		WaitForRenderer: in.WaitForRenderer == nil || *in.WaitForRenderer,
	}
	if in.Cwd != "" {
		r.Cwd = pathutil.Resolve(in.Cwd, cwd)
	}
	if in.WaitTimeout > 0 {
		r.WaitTimeout = time.Duration(in.WaitTimeout) * time.Millisecond
	}
	for _, a := range in.Assets {
		if n := pathutil.Normalize(a); n != "" {
			r.Assets = append(r.Assets, n)
		}
	}

	if len(r.URL) == 0 {
		r.OutDir = pathutil.Normalize(orDefault(in.OutDir, defaultRendererOutDir))
		r.Entry = pathutil.Normalize(orDefault(in.Entry, defaultRendererEntry))
	}
	return r
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
