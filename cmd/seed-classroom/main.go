package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/classroom-client/internal/app"
	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/bootstrap"
	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/logger"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/validator"
)

const (
	seedPassword = "classroomseed"
	teacherEmail = "docente.seed@example.com"
)

func main() {
	cfg := config.Load()
	// Seeding runs one account after another; keep the session local.
	cfg.SessionMedium = config.MediumNone
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	core := app.New(cfg, log, metrics.NewNop(), nil)
	defer core.Close()

	if st := core.Coordinator.Initialize(ctx); st.State != bootstrap.Ready {
		log.Fatal().Err(st.LastError).Msg("Subsystems unavailable")
	}

	names := []string{
		"Ana Hernández", "Luis García", "María López", "José Martínez", "Sofía González",
		"Diego Rodríguez", "Valeria Pérez", "Carlos Sánchez", "Fernanda Ramírez", "Jorge Torres",
		"Daniela Flores", "Miguel Rivera", "Camila Gómez", "Andrés Díaz", "Regina Cruz",
		"Emiliano Morales", "Ximena Reyes", "Santiago Ortiz", "Renata Gutiérrez", "Mateo Chávez",
	}

	fmt.Printf("=== Seeding %d Students ===\n", len(names))

	studentIDs := make([]string, 0, len(names))
	for i, name := range names {
		req := model.RegisterRequest{
			Username: name,
			Email:    fmt.Sprintf("alumno%02d.seed@example.com", i+1),
			Folio:    fmt.Sprintf("S-%04d", i+1),
			CURP:     fmt.Sprintf("SEED%08dHDFRRR", i+1),
			Password: seedPassword,
			Role:     model.RoleStudent,
		}
		user, err := core.Session.Register(ctx, req)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeEmailTaken {
				user, err = core.Session.Login(ctx, req.Email, seedPassword)
			}
			if err != nil {
				fmt.Printf("Error creating student %s (%s): %v\n", name, req.Email, err)
				continue
			}
		}
		studentIDs = append(studentIDs, user.ID)
		core.Session.Logout(ctx)
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d students...\n", i+1)
		}
	}

	// ─── Teacher and Class ─────────────────────────────────────────────
	teacher, err := core.Session.Register(ctx, model.RegisterRequest{
		Username: "Docente Seed",
		Email:    teacherEmail,
		Folio:    "T-0001",
		CURP:     "SEED00000000HDFTCH",
		Password: seedPassword,
		Role:     model.RoleTeacher,
		Subjects: []model.Subject{model.SubjectProgramming, model.SubjectEnglish},
	})
	if apperr.CodeOf(err) == apperr.CodeEmailTaken {
		teacher, err = core.Session.Login(ctx, teacherEmail, seedPassword)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign in the seed teacher")
	}
	defer core.Session.Logout(ctx)

	class, err := core.Classes.CreateClass(ctx, teacher, model.CreateClassRequest{
		Name:    "Programación 4B",
		Section: "4B",
		Subject: string(model.SubjectProgramming),
		Room:    "Lab 2",
		Color:   "#1a73e8",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create class")
	}
	fmt.Printf("Created class %s (%s)\n", class.Name, class.ID)

	enrolled := 0
	for _, id := range studentIDs {
		if err := core.Classes.Enroll(ctx, class.ID, id); err != nil {
			fmt.Printf("Error enrolling %s: %v\n", id, err)
			continue
		}
		enrolled++
	}

	// ─── Feeds ─────────────────────────────────────────────────────────
	for i := 1; i <= 15; i++ {
		req := model.CreateAnnouncementRequest{Content: fmt.Sprintf("Aviso %d: revisen el material de la semana.", i)}
		if _, err := core.Feeds.CreateAnnouncement(ctx, class.ID, req); err != nil {
			log.Fatal().Err(err).Msg("Failed to post announcement")
		}
	}
	due := time.Now().Truncate(time.Hour)
	for i := 1; i <= 12; i++ {
		req := model.CreateAssignmentRequest{
			Title:       fmt.Sprintf("Práctica %d", i),
			Description: "Entregar en el repositorio del grupo.",
			DueDate:     due.Add(time.Duration(i*36) * time.Hour),
		}
		if _, err := core.Feeds.CreateAssignment(ctx, class.ID, req); err != nil {
			log.Fatal().Err(err).Msg("Failed to create assignment")
		}
	}

	fmt.Printf("\nSeed completed! %d/%d students enrolled, 15 announcements, 12 assignments.\n", enrolled, len(names))
	fmt.Printf("Teacher: %s / %s\n", teacherEmail, seedPassword)
}
