package server

import (
	"net/http"

	"candle-replay/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *ReplayServer) getHealth(c *gin.Context) {
	s.mu.RLock()
	sessions := len(s.sessions)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"sessions":    sessions,
		"connections": s.hub.Connections(),
	})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default_speed": s.Config.Replay.DefaultSpeed,
		"max_speed":     s.Config.Replay.MaxSpeed,
		"data_dir":      s.Config.Replay.DataDir,
		"default_file":  s.Config.Replay.DefaultFile,
	})
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) getSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.Snapshots()})
}

// -----------------------------------------------------------------------------

// postLoadData fetches a series from the provider and stores it as the default
// replay file.
func (s *ReplayServer) postLoadData(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("cannot read body"))
		return
	}

	req, err := parseLoadDataRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	start, err := parseDateParam(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid date: "+err.Error()))
		return
	}
	end, err := parseDateParam(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid date: "+err.Error()))
		return
	}

	if s.Provider == nil || s.Source == nil {
		c.JSON(http.StatusInternalServerError, errorBody("no data provider configured"))
		return
	}

	series, err := s.Provider.FetchSeries(c.Request.Context(), models.MSeriesRequest{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Start:    start,
		End:      end,
		APIKey:   req.APIKey,
	})
	if err != nil {
		s.Logger.Error("load_data %s failed: %v", req.Symbol, err)
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	path, err := s.Source.WriteSeries(s.Config.Replay.DefaultFile, series)
	if err != nil {
		s.Logger.Error("load_data could not store %s: %v", req.Symbol, err)
		c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "file": path})
}

func errorBody(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}
