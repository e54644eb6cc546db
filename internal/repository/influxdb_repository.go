package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"PenguinWatch.dashboard/internal/models"
)

const measurementName = "penguin_weight"

// Repository archives live measurements as a time series.
type Repository interface {
	WriteMeasurement(ctx context.Context, m models.Measurement) error
	QueryHistory(ctx context.Context, penguinID string, limit int) ([]models.Measurement, error)
	Ping(ctx context.Context) error
	Close()
}

// InfluxDBRepository stores measurements in one InfluxDB bucket.
type InfluxDBRepository struct {
	client influxdb2.Client
	org    string
	bucket string
	log    zerolog.Logger
}

// NewInfluxDBRepository creates a new InfluxDBRepository.
func NewInfluxDBRepository(url, token, org, bucket string, log zerolog.Logger) *InfluxDBRepository {
	return &InfluxDBRepository{
		client: influxdb2.NewClient(url, token),
		org:    org,
		bucket: bucket,
		log:    log,
	}
}

// Ping checks the server health endpoint.
func (r *InfluxDBRepository) Ping(ctx context.Context) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		return fmt.Errorf("influxdb health check: status %s", health.Status)
	}
	return nil
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (r *InfluxDBRepository) EnsureBucket(ctx context.Context) error {
	_, err := r.client.BucketsAPI().FindBucketByName(ctx, r.bucket)
	if err == nil {
		return nil
	}
	if err.Error() != "not found" {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	org, err := r.client.OrganizationsAPI().FindOrganizationByName(ctx, r.org)
	if err != nil {
		return fmt.Errorf("find organization %q: %w", r.org, err)
	}
	if _, err := r.client.BucketsAPI().CreateBucketWithName(ctx, org, r.bucket); err != nil {
		return fmt.Errorf("create bucket %q: %w", r.bucket, err)
	}
	r.log.Info().Str("bucket", r.bucket).Msg("created archive bucket")
	return nil
}

// WriteMeasurement archives one measurement. Records without a parseable
// weight are skipped.
func (r *InfluxDBRepository) WriteMeasurement(ctx context.Context, m models.Measurement) error {
	p, ok := measurementPoint(m, time.Now())
	if !ok {
		r.log.Debug().Str("penguin_id", m.ID).Msg("skipping archive of measurement without weight")
		return nil
	}
	if err := r.client.WriteAPIBlocking(r.org, r.bucket).WritePoint(ctx, p); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	return nil
}

// QueryHistory returns up to limit archived measurements of one penguin,
// newest first.
func (r *InfluxDBRepository) QueryHistory(ctx context.Context, penguinID string, limit int) ([]models.Measurement, error) {
	result, err := r.client.QueryAPI(r.org).Query(ctx, historyQuery(r.bucket, penguinID, limit))
	if err != nil {
		return nil, fmt.Errorf("error querying InfluxDB: %w", err)
	}
	defer result.Close()

	var out []models.Measurement
	for result.Next() {
		rec := result.Record()
		m := models.Measurement{ID: penguinID}
		if id, ok := rec.ValueByKey("penguin_id").(string); ok {
			m.ID = id
		}
		switch v := rec.Value().(type) {
		case float64:
			m.Weight = models.NewWeight(v)
		case int64:
			m.Weight = models.NewWeight(float64(v))
		}
		ts := rec.Time().UTC()
		m.Date = ts.Format("2006-01-02")
		m.Time = ts.Format("15:04:05")
		out = append(out, m)
	}
	if result.Err() != nil {
		return out, fmt.Errorf("error during query iteration: %w", result.Err())
	}
	return out, nil
}

func (r *InfluxDBRepository) Close() {
	r.client.Close()
}

// measurementPoint builds the line protocol point for m. The measurement's own
// date and time are used when they parse, now otherwise.
func measurementPoint(m models.Measurement, now time.Time) (*write.Point, bool) {
	w, ok := m.Weight.Float()
	if !ok {
		return nil, false
	}
	id := m.ID
	if id == "" {
		id = "unknown"
	}
	fields := map[string]interface{}{"weight": w}
	if m.ImageURL != "" {
		fields["image_url"] = m.ImageURL
	}
	return influxdb2.NewPoint(
		measurementName,
		map[string]string{"penguin_id": id},
		fields,
		measurementTime(m, now),
	), true
}

func measurementTime(m models.Measurement, now time.Time) time.Time {
	if m.Date == "" {
		return now
	}
	clock := m.Time
	if clock == "" {
		clock = "00:00:00"
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, m.Date+" "+clock, time.UTC); err == nil {
			return t
		}
	}
	return now
}

// fluxString escapes text for a double quoted Flux string literal. Backslashes
// go first so an escaped quote cannot be turned back into a closing one.
var fluxString = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `${`, `\${`)

func historyQuery(bucket, penguinID string, limit int) string {
	if limit <= 0 {
		limit = 50
	}
	return fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: 0)
		|> filter(fn: (r) => r["_measurement"] == "%s")
		|> filter(fn: (r) => r["penguin_id"] == "%s")
		|> filter(fn: (r) => r["_field"] == "weight")
		|> sort(columns: ["_time"], desc: true)
		|> limit(n: %d)
	`, fluxString.Replace(bucket), measurementName, fluxString.Replace(penguinID), limit)
}
