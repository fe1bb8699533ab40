package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rhenando/maxsmile/internal/auth"
	"github.com/rhenando/maxsmile/internal/clinic"
	"github.com/rhenando/maxsmile/internal/config"
	"github.com/rhenando/maxsmile/internal/db"
	"github.com/rhenando/maxsmile/internal/models"
)

// Seeds one admin account per branch. Passwords come from
// ADMIN_PASSWORD_<BRANCH> (slug upper-cased, dashes to underscores);
// branches without a password are skipped.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	dir := clinic.Default()
	for _, branch := range dir.Branches() {
		envKey := "ADMIN_PASSWORD_" + strings.ToUpper(strings.ReplaceAll(branch.Slug, "-", "_"))
		password := os.Getenv(envKey)
		if password == "" {
			log.Printf("seed admin: %s missing, skipping branch %s", envKey, branch.Slug)
			continue
		}
		username := "admin-" + branch.Slug
		if err := seedAdminUser(ctx, cols, username, branch.Slug, password, cfg.Timezone); err != nil {
			log.Fatalf("seed admin error for %s: %v", username, err)
		}
		log.Printf("seed admin: %s ready", username)
	}

	if err := seedTestimonials(ctx, cols, cfg.Timezone); err != nil {
		log.Fatalf("seed testimonials error: %v", err)
	}

	log.Println("seed completed")
}

func seedAdminUser(ctx context.Context, cols *db.Collections, username, branch, password string, loc *time.Location) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	filter := bson.M{"username": username}
	update := bson.M{
		"$set": bson.M{
			"password_hash": hash,
			"role":          models.UserRoleAdmin,
			"branch_slug":   branch,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID().Hex(),
			"username":   username,
			"created_at": now,
		},
	}
	_, err = cols.Users.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func seedTestimonials(ctx context.Context, cols *db.Collections, loc *time.Location) error {
	samples := []models.Testimonial{
		{Name: "Maria S.", Rating: 5, Message: "Painless wisdom tooth extraction, the staff were wonderful."},
		{Name: "Jerome D.", Rating: 5, Message: "My braces adjustment was quick and the clinic is spotless."},
		{Name: "Angelica R.", Rating: 4, Message: "Teeth whitening results were great, booking online was easy."},
	}
	for _, sample := range samples {
		filter := bson.M{"name": sample.Name, "message": sample.Message}
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID().Hex(),
				"name":       sample.Name,
				"rating":     sample.Rating,
				"message":    sample.Message,
				"created_at": time.Now().In(loc),
			},
		}
		if _, err := cols.Testimonials.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			return err
		}
	}
	return nil
}
