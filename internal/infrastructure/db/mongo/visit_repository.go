package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

const collectionVisits = "visits"

type VisitRepository struct {
	col   *mongo.Collection
	users *mongo.Collection
	seq   *sequence
}

func NewVisitRepository(db *mongo.Database) *VisitRepository {
	return &VisitRepository{
		col:   db.Collection(collectionVisits),
		users: db.Collection(collectionUsers),
		seq:   newSequence(db),
	}
}

type visitDoc struct {
	ID        int64     `bson:"_id"`
	Title     string    `bson:"title"`
	StartTime time.Time `bson:"start_time"`
	EndTime   time.Time `bson:"end_time"`
	Type      string    `bson:"type"`
	Status    string    `bson:"status"`
	Notes     *string   `bson:"notes"`
	PatientID int64     `bson:"patient_id"`
	ClinicID  int64     `bson:"clinic_id"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toVisitDoc(v *domain.Visit) visitDoc {
	return visitDoc{
		ID:        v.ID,
		Title:     v.Title,
		StartTime: v.StartTime,
		EndTime:   v.EndTime,
		Type:      string(v.Type),
		Status:    string(v.Status),
		Notes:     v.Notes,
		PatientID: v.PatientID,
		ClinicID:  v.ClinicID,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func (d visitDoc) toDomain() *domain.Visit {
	return &domain.Visit{
		ID:        d.ID,
		Title:     d.Title,
		StartTime: d.StartTime.UTC(),
		EndTime:   d.EndTime.UTC(),
		Type:      domain.VisitType(d.Type),
		Status:    domain.VisitStatus(d.Status),
		Notes:     d.Notes,
		PatientID: d.PatientID,
		ClinicID:  d.ClinicID,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func (r *VisitRepository) Create(ctx context.Context, v *domain.Visit) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.seq.next(ctx, collectionVisits)
	if err != nil {
		return err
	}
	v.ID = id

	if _, err := r.col.InsertOne(ctx, toVisitDoc(v)); err != nil {
		v.ID = 0
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (r *VisitRepository) FindByID(ctx context.Context, id int64) (*domain.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc visitDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("visit %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find visit: %w", err)
	}

	visits, err := r.withParties(ctx, []visitDoc{doc})
	if err != nil {
		return nil, err
	}
	return visits[0], nil
}

func (r *VisitRepository) List(ctx context.Context, f ports.VisitFilter) ([]*domain.Visit, error) {
	filter := bson.M{}
	if f.ClinicID != nil {
		filter["clinic_id"] = *f.ClinicID
	}
	if f.PatientID != nil {
		filter["patient_id"] = *f.PatientID
	}
	if f.StartFrom != nil {
		filter["start_time"] = bson.M{"$gte": *f.StartFrom}
	}
	if f.EndTo != nil {
		filter["end_time"] = bson.M{"$lte": *f.EndTo}
	}
	return r.find(ctx, filter)
}

func (r *VisitRepository) FindOverlapping(ctx context.Context, clinicID int64, iv domain.Interval, excludeID int64) ([]*domain.Visit, error) {
	filter := bson.M{
		"clinic_id":  clinicID,
		"start_time": bson.M{"$lt": iv.End},
		"end_time":   bson.M{"$gt": iv.Start},
	}
	if excludeID != 0 {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	return r.find(ctx, filter)
}

func (r *VisitRepository) find(ctx context.Context, filter bson.M) ([]*domain.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	var docs []visitDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode visits: %w", err)
	}
	return r.withParties(ctx, docs)
}

// withParties loads the patient and clinic summaries of docs in one query.
func (r *VisitRepository) withParties(ctx context.Context, docs []visitDoc) ([]*domain.Visit, error) {
	visits := make([]*domain.Visit, 0, len(docs))
	if len(docs) == 0 {
		return visits, nil
	}

	ids := make([]int64, 0, len(docs)*2)
	seen := make(map[int64]struct{}, len(docs)*2)
	for _, d := range docs {
		for _, id := range []int64{d.PatientID, d.ClinicID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1})
	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("load visit parties: %w", err)
	}
	var people []struct {
		ID    int64  `bson:"_id"`
		Name  string `bson:"name"`
		Email string `bson:"email"`
	}
	if err := cur.All(ctx, &people); err != nil {
		return nil, fmt.Errorf("decode visit parties: %w", err)
	}
	parties := make(map[int64]*domain.Party, len(people))
	for _, p := range people {
		parties[p.ID] = &domain.Party{ID: p.ID, Name: p.Name, Email: p.Email}
	}

	for _, d := range docs {
		v := d.toDomain()
		v.Patient = parties[d.PatientID]
		v.Clinic = parties[d.ClinicID]
		visits = append(visits, v)
	}
	return visits, nil
}

// visitSet builds the $set document for a partial update.
func visitSet(v *domain.Visit, fields []ports.VisitField) (bson.M, error) {
	set := bson.M{"updated_at": v.UpdatedAt}
	for _, f := range fields {
		switch f {
		case ports.VisitFieldTitle:
			set["title"] = v.Title
		case ports.VisitFieldSchedule:
			set["start_time"] = v.StartTime
			set["end_time"] = v.EndTime
		case ports.VisitFieldType:
			set["type"] = string(v.Type)
		case ports.VisitFieldStatus:
			set["status"] = string(v.Status)
		case ports.VisitFieldNotes:
			set["notes"] = v.Notes
		case ports.VisitFieldPatient:
			set["patient_id"] = v.PatientID
		case ports.VisitFieldClinic:
			set["clinic_id"] = v.ClinicID
		default:
			return nil, fmt.Errorf("update visit: unknown field %q", f)
		}
	}
	return set, nil
}

func (r *VisitRepository) Update(ctx context.Context, v *domain.Visit, fields []ports.VisitField) error {
	set, err := visitSet(v, fields)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("visit %d: %w", v.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *VisitRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("visit %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// EnsureIndexes creates the schedule and patient lookup indexes.
func (r *VisitRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "clinic_id", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "start_time", Value: 1}}},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
