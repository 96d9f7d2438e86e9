package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/export"
	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/planner"
	"github.com/zulandar/foreman/internal/reschedule"
	"github.com/zulandar/foreman/internal/schedule"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	api := router.Group("/api")

	api.GET("/tasks", handleTaskTree(s))
	api.GET("/tasks/:id", handleTask(s))
	api.PATCH("/tasks/:id/schedule", handleReschedule(s))
	api.DELETE("/tasks/:id", handleDelete(s))
	api.POST("/tasks/:id/undo-delete", handleUndoDelete(s))

	api.GET("/timeline", handleTimeline(s))
	api.GET("/critical-path", handleCriticalPath(s))

	api.GET("/conflicts", handleConflicts(s))
	api.GET("/conflicts/ignore", handleListIgnored(s))
	api.POST("/conflicts/ignore", handleIgnore(s, true))
	api.DELETE("/conflicts/ignore", handleIgnore(s, false))
	api.POST("/conflicts/feedback", handleFeedback(s))
	api.GET("/feedback/summary", handleFeedbackSummary(s))

	api.GET("/export.xml", handleExport(s))

	api.GET("/ws", handleWS(s))
	api.GET("/events", handleSSE(s))
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// taskNode is a task with its children nested, for tree responses.
type taskNode struct {
	models.Task
	Children []*taskNode `json:"children,omitempty"`
}

// nestTree converts the hierarchy into response nodes. Flatten yields
// parents before their children, so one pass over it links every node.
func nestTree(tree *schedule.Tree) []*taskNode {
	nodes := tree.Flatten()
	byID := make(map[string]*taskNode, len(nodes))
	roots := make([]*taskNode, 0, len(tree.Roots))
	for _, n := range nodes {
		out := &taskNode{Task: *n.Task}
		out.Level = n.Level
		byID[n.Task.ID] = out
		if n.Parent == nil {
			roots = append(roots, out)
			continue
		}
		parent := byID[n.Parent.Task.ID]
		parent.Children = append(parent.Children, out)
	}
	return roots
}

func handleTaskTree(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"project": s.pl.Project(),
			"tasks":   nestTree(s.pl.Tree()),
		})
	}
}

func handleTask(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, ok := s.pl.Task(c.Param("id"))
		if !ok {
			abort(c, http.StatusNotFound, fmt.Errorf("task %s not found", c.Param("id")))
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// scheduleRequest moves a task on the timeline or the status board.
// Start accepts YYYY-MM-DD or RFC 3339.
type scheduleRequest struct {
	Start  string `json:"start"`
	Status string `json:"status"`
	Prev   string `json:"prev"`
	Next   string `json:"next"`
}

func (r scheduleRequest) target() (reschedule.DropTarget, error) {
	t := reschedule.DropTarget{Status: r.Status, Prev: r.Prev, Next: r.Next}
	if r.Status != "" && !schedule.ValidStatus(r.Status) {
		return t, fmt.Errorf("invalid status %q", r.Status)
	}
	if r.Start != "" {
		d, err := parseDay(r.Start)
		if err != nil {
			return t, err
		}
		t.Date = &d
	}
	return t, nil
}

func parseDay(s string) (time.Time, error) {
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

func handleReschedule(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req scheduleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		target, err := req.target()
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		t, err := s.pl.Reschedule(c.Request.Context(), c.Param("id"), target)
		switch {
		case errors.Is(err, reschedule.ErrUnknownTask):
			abort(c, http.StatusNotFound, err)
			return
		case err != nil:
			abort(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handleDelete(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := s.pl.Delete(id)
		switch {
		case errors.Is(err, reschedule.ErrUnknownTask):
			abort(c, http.StatusNotFound, err)
			return
		case errors.Is(err, reschedule.ErrRegistryClosed):
			abort(c, http.StatusServiceUnavailable, err)
			return
		case err != nil:
			abort(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id, "pending": s.pl.PendingDeletions()})
	}
}

func handleUndoDelete(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !s.pl.Undo(id) {
			abort(c, http.StatusGone, fmt.Errorf("task %s has no pending deletion", id))
			return
		}
		t, _ := s.pl.Task(id)
		c.JSON(http.StatusOK, t)
	}
}

func handleTimeline(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		scale, err := schedule.ParseTimescale(c.Query("scale"))
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		c.JSON(http.StatusOK, s.pl.Timeline(scale))
	}
}

func handleCriticalPath(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := s.pl.Snapshot()
		if snap.CriticalErr != nil {
			abort(c, http.StatusConflict, snap.CriticalErr)
			return
		}
		cp := snap.Critical
		c.JSON(http.StatusOK, gin.H{
			"critical":       cp.Critical,
			"times":          cp.Times,
			"length":         cp.Length,
			"project_start":  cp.ProjectStart.Format("2006-01-02"),
			"project_finish": cp.ProjectFinish().Format("2006-01-02"),
		})
	}
}

func handleConflicts(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := conflict.ParsePerspective(c.Query("perspective"))
		if err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		res := s.pl.Analyze(p)
		c.JSON(http.StatusOK, gin.H{
			"perspective": p,
			"score":       res.Score,
			"conflicts":   res.Conflicts,
			"suggestions": res.Suggestions,
		})
	}
}

// keyRequest names a conflict by its task pair and rule.
type keyRequest struct {
	A      string `json:"a" binding:"required"`
	B      string `json:"b"`
	RuleID string `json:"rule_id" binding:"required"`
	Action string `json:"action"`
}

func (r keyRequest) key() conflict.Key {
	return conflict.NewKey(r.A, r.B, r.RuleID)
}

func handleListIgnored(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ignored": s.pl.Ignored()})
	}
}

func handleIgnore(s *server, ignore bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req keyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		if ignore {
			s.pl.Ignore(req.key())
		} else {
			s.pl.Unignore(req.key())
		}
		c.Status(http.StatusNoContent)
	}
}

func handleFeedback(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req keyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err)
			return
		}
		err := s.pl.Feedback(c.Request.Context(), req.key(), strings.ToLower(req.Action))
		switch {
		case errors.Is(err, planner.ErrConflictNotFound):
			abort(c, http.StatusNotFound, err)
			return
		case err != nil:
			abort(c, http.StatusBadRequest, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleFeedbackSummary(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.stats == nil {
			abort(c, http.StatusNotFound, errors.New("feedback summary is not available"))
			return
		}
		since := s.now().AddDate(0, 0, -30)
		if q := c.Query("since"); q != "" {
			d, err := parseDay(q)
			if err != nil {
				abort(c, http.StatusBadRequest, err)
				return
			}
			since = d
		}
		stats, err := s.stats.Summary(c.Request.Context(), since)
		if err != nil {
			abort(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"since": since.Format("2006-01-02"), "rules": stats})
	}
}

func handleExport(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="schedule.xml"`)
		c.Status(http.StatusOK)
		if err := export.WriteXML(c.Writer, s.pl.Project(), s.pl.Snapshot().Tasks, s.now()); err != nil {
			log.Printf("server: export: %v", err)
		}
	}
}

func handleWS(s *server) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := NewClient(s.hub, conn)

		snap := s.pl.Snapshot()
		hello, err := json.Marshal(wsMessage{Type: "snapshot", Data: gin.H{
			"score":     snap.Analysis.Score,
			"conflicts": snap.Analysis.Conflicts,
			"tasks":     snap.Tasks,
		}})
		if err == nil {
			client.Send <- hello
		}
		if !s.hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	}
}
