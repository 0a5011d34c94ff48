package httphandlers

import (
	"net/http"
	"net/http/pprof"

	"github.com/gin-gonic/gin"
	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/interfaces"
	"github.com/predictware/roundkeeper/internal/scheduler"
)

// StateReader is the read-only view of the scheduler the API exposes.
type StateReader interface {
	Snapshots() []scheduler.Snapshot
	Snapshot(marketTitle string) (scheduler.Snapshot, bool)
}

// HTTPHandler serves the read-only operational API. It never mutates keeper
// state; markets are fixed at startup.
type HTTPHandler struct {
	state   StateReader
	cfg     *config.Config
	markets *config.MarketsConfig
	log     interfaces.ILogger
}

func NewHTTPHandler(state StateReader, cfg *config.Config, markets *config.MarketsConfig, log interfaces.ILogger) *gin.Engine {
	handl := &HTTPHandler{
		state:   state,
		cfg:     cfg,
		markets: markets,
		log:     log,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthcheck", handl.HealthCheck)
	r.GET("/markets", handl.GetMarkets)
	r.GET("/markets/:title", handl.GetMarket)
	r.GET("/config", handl.GetConfig)

	r.Any("/debug/pprof/*action", gin.WrapF(pprof.Index))

	err := r.SetTrustedProxies(nil)
	if err != nil {
		panic(err)
	}

	return r
}

func (h *HTTPHandler) HealthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": config.BuildVersion,
	})
}

func (h *HTTPHandler) GetMarkets(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.state.Snapshots())
}

func (h *HTTPHandler) GetMarket(ctx *gin.Context) {
	snapshot, ok := h.state.Snapshot(ctx.Param("title"))
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "unknown market"})
		return
	}
	ctx.JSON(http.StatusOK, snapshot)
}

func (h *HTTPHandler) GetConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"config":  h.cfg.GetSanitized(),
		"markets": h.markets,
	})
}
