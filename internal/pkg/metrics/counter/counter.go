package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fielddesk/fielddesk/internal/pkg/cache"
	"github.com/fielddesk/fielddesk/internal/pkg/database"
)

const (
	eventsSyncedKey   = "integration:counters:events_synced"
	messagesSyncedKey = "integration:counters:messages_synced"
)

// AddEventsSynced increments the pending synced-event counter for an integration in Redis
func AddEventsSynced(integrationID uint, count int64) error {
	if count == 0 {
		return nil
	}
	ctx := context.Background()
	field := strconv.FormatUint(uint64(integrationID), 10)
	return cache.GetClient().HIncrBy(ctx, eventsSyncedKey, field, count).Err()
}

// AddMessagesSynced increments the pending synced-message counter for an integration in Redis
func AddMessagesSynced(integrationID uint, count int64) error {
	if count == 0 {
		return nil
	}
	ctx := context.Background()
	field := strconv.FormatUint(uint64(integrationID), 10)
	return cache.GetClient().HIncrBy(ctx, messagesSyncedKey, field, count).Err()
}

// FlushAll flushes pending sync counters to the integrations table
func FlushAll() error {
	if err := flushHashToTable(eventsSyncedKey, "integrations", "events_synced"); err != nil {
		return err
	}
	return flushHashToTable(messagesSyncedKey, "integrations", "events_synced")
}

// flushHashToTable drains a Redis hash atomically and applies batched increments.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// UPDATE integrations SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id ")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	db := database.GetDB()
	return db.Exec(builder.String(), args...).Error
}

// StartFlusher starts a background loop flushing counters at the interval
func StartFlusher(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := FlushAll(); err != nil {
					fmt.Printf("[Counter] flush failed: %v\n", err)
				}
			case <-stop:
				return
			}
		}
	}()
}
