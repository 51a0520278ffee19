package service

import (
	"context"
	"errors"
	"maps"

	pkgerrors "github.com/pkg/errors"

	"github.com/mdr-platform/settings-service/internal/db/models"
	"github.com/mdr-platform/settings-service/internal/db/store"
	"github.com/mdr-platform/settings-service/internal/logger"
	"github.com/mdr-platform/settings-service/internal/query"
)

// SeedResult counts what Seed did.
type SeedResult struct {
	Created int
	Updated int
}

func jobSetting(name, description, jobName, interval string, enabled bool, lockLifetime, timeoutMs int64, summary string) map[string]any {
	return map[string]any{
		models.KeyName:        name,
		models.KeyDescription: description,
		models.KeyType:        "Site",
		models.KeyCategory:    "Jobs",
		models.KeyAdminOnly:   true,
		models.KeyEnvironment: string(models.EnvBoth),
		models.KeyValue: map[string]any{
			"enabled":     enabled,
			"interval":    interval,
			"description": summary,
		},
		"enabled":           enabled,
		"interval":          interval,
		"jobName":           jobName,
		"lockLifetime":      lockLifetime,
		"timeoutIntervalMs": timeoutMs,
	}
}

// JobSettings are the switches of the scheduled jobs.
func JobSettings() []map[string]any {
	return []map[string]any{
		jobSetting("JOB_CREATE_STATUS",
			"Legacy ping check job. Checks if the external CREATE system is available. Deprecated and should remain disabled.",
			"createStatus", "30 seconds", false, 120000, 4950,
			"Legacy ping check - checks external CREATE system availability"),
		jobSetting("JOB_ANDROID_SYNC",
			"Android mobile app sync job. Triggers synchronization of data between the server and the Android application.",
			"androidSync", "1 minute", true, 300000, 10000,
			"Syncs data with Android mobile app"),
		jobSetting("JOB_TRANSCRIPTION_POLL",
			"Video transcription polling job. Polls for pending transcriptions and triggers processing of completed ones.",
			"transcriptionPoll", "30 seconds", true, 60000, 10000,
			"Polls for pending video transcriptions"),
	}
}

// Seed creates every document whose name is unknown and applies the others as a partial update.
func (s *Settings) Seed(ctx context.Context, docs []map[string]any) (SeedResult, error) {
	var (
		res SeedResult
		l   = logger.FromContext(ctx, component)
		sys = Caller{Privileged: true}
	)

	for _, doc := range docs {
		name, _ := doc[models.KeyName].(string)

		existing, err := s.store.FindOne(ctx, query.Eq(models.KeyName, name))

		switch {
		case errors.Is(err, store.ErrNotFound):
			if _, err := s.Create(ctx, maps.Clone(doc), sys); err != nil {
				return res, pkgerrors.Wrapf(err, "create %s", name)
			}

			res.Created++

			l.Info().Str("name", name).Msg("seed created")
		case err != nil:
			return res, pkgerrors.Wrapf(err, "look up %s", name)
		default:
			if _, err := s.Update(ctx, existing.ID, doc, sys); err != nil {
				return res, pkgerrors.Wrapf(err, "update %s", name)
			}

			res.Updated++

			l.Info().Str("name", name).Msg("seed updated")
		}
	}

	return res, nil
}
