package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/neuralux/convoengine/internal/convo"
	"github.com/neuralux/convoengine/internal/fileops"
)

func (o *Orchestrator) executeWebSearch(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	query := action.ParamString("query")
	if query == "" {
		return convo.NewFailure(convo.ActionWebSearch, convo.ErrMissingParam, "Missing query parameter")
	}
	limit := action.ParamInt("limit", 5)

	hits, err := o.Search.Search(ctx, query, limit)
	if err != nil {
		return convo.NewFailure(convo.ActionWebSearch, convo.ErrRemoteError, fmt.Sprintf("Web search failed: %v", err))
	}

	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"title":   h.Title,
			"url":     h.URL,
			"snippet": h.Snippet,
		})
	}

	return convo.NewSuccess(convo.ActionWebSearch, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (o *Orchestrator) executeImageSave(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	return o.executeFileSave(action, session, convo.ActionImageSave, ".png", true)
}

func (o *Orchestrator) executeMusicSave(ctx context.Context, action *convo.Action, session *convo.Session) *convo.ActionResult {
	// A src_path still carrying the placeholder means the asynchronous
	// generation has not delivered a file yet. Skip rather than fail;
	// the Handler re-executes once the result arrives.
	if strings.Contains(action.ParamString("src_path"), "{{") {
		return convo.NewSuccess(convo.ActionMusicSave, map[string]any{
			"status": "deferred",
		})
	}
	return o.executeFileSave(action, session, convo.ActionMusicSave, ".wav", false)
}

// executeFileSave copies a generated artifact to a user-chosen
// destination. verifyImage decodes the source first so a truncated or
// corrupt upstream image surfaces as an IOError instead of being copied
// as-is.
func (o *Orchestrator) executeFileSave(action *convo.Action, session *convo.Session, kind convo.ActionKind, defaultExt string, verifyImage bool) *convo.ActionResult {
	srcPath := action.ParamString("src_path")
	if srcPath == "" {
		return convo.NewFailure(kind, convo.ErrMissingParam, "Missing src_path parameter")
	}
	dstPath := action.ParamString("dst_path")
	if dstPath == "" {
		return convo.NewFailure(kind, convo.ErrMissingParam, "Missing dst_path parameter")
	}

	if _, err := os.Stat(srcPath); err != nil {
		return convo.NewFailure(kind, convo.ErrSourceNotFound, fmt.Sprintf("Source file not found: %s", srcPath))
	}

	if verifyImage {
		if _, err := imaging.Open(srcPath); err != nil {
			return convo.NewFailure(kind, convo.ErrIOError, fmt.Sprintf("Source image is not a readable image: %v", err))
		}
	}

	dst, err := fileops.ResolveDestination(dstPath, session.WorkingDirectory, filepath.Base(srcPath), defaultExt)
	if err != nil {
		return convo.NewFailure(kind, convo.ErrIOError, err.Error())
	}
	if err := fileops.CopyFile(srcPath, dst); err != nil {
		return convo.NewFailure(kind, convo.ErrIOError, fmt.Sprintf("Failed to copy: %v", err))
	}

	return convo.NewSuccess(kind, map[string]any{
		"saved_path":    dst,
		"original_path": srcPath,
	})
}
