package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/biomatch-server/internal/domain"
)

const streamWriteWait = 10 * time.Second

// streamMessage is one websocket frame. The final frame has Done set.
type streamMessage struct {
	Index  int                 `json:"index"`
	Total  int                 `json:"total"`
	Result *domain.MatchResult `json:"result,omitempty"`
	Done   bool                `json:"done,omitempty"`
}

// handleStreamMatches validates before upgrading so failures are plain HTTP errors,
// then sends results one per frame in rank order.
func (s *Server) handleStreamMatches(c *gin.Context) {
	sample, err := s.deps.Store.GetSample(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	count, err := countParam(c, s.cfg.Matching.DefaultCount)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	results, err := s.deps.Engine.FindMatches(ctx, sample, count)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.deps.Store.PutResults(ctx, sample.ID, results)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.logger.WithFields(logrus.Fields{"sample_id": sample.ID, "count": len(results)})
	for i, r := range results {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(streamMessage{Index: i, Total: len(results), Result: r}); err != nil {
			log.WithError(err).Debug("Stream client went away")
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	_ = conn.WriteJSON(streamMessage{Index: len(results), Total: len(results), Done: true})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(streamWriteWait))
	log.Debug("Match stream completed")
}
