package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schooladmin/internal/attendance"
	"schooladmin/internal/auth"
	"schooladmin/internal/calendar"
	"schooladmin/internal/course"
	"schooladmin/internal/gateway"
	"schooladmin/internal/grade"
	"schooladmin/internal/shared"
	"schooladmin/internal/subjectstatus"
	"schooladmin/internal/user"
)

func main() {
	log.Println("INFO: Starting School Admin Service...")

	// 1. Load Configuration
	_ = shared.LoadEnv("")
	config, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	loc, err := shared.LoadLocation(config.Timezone)
	if err != nil {
		log.Fatalf("FATAL: Invalid timezone %q: %v", config.Timezone, err)
	}

	// 2. Connect to MongoDB
	client, db, err := shared.ConnectMongoDB(&config.MongoDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	indexCtx, indexCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer indexCancel()
	if err := shared.EnsureIndexes(indexCtx, db); err != nil {
		log.Fatalf("FATAL: Failed to create indexes: %v", err)
	}

	// 3. Wire Services
	clock := shared.RealClock()
	calendarService := calendar.NewService(calendar.NewMongoConfigStore(db), clock, loc)

	services := &gateway.Services{
		Auth:       auth.NewService(db, config),
		Users:      user.NewService(db, config),
		Courses:    course.NewService(db),
		Calendar:   calendarService,
		Grades:     grade.NewService(grade.NewMongoStore(db), calendarService, clock),
		Attendance: attendance.NewService(db),
		Statuses:   subjectstatus.NewService(subjectstatus.NewMongoStore(db), clock),
	}

	// 4. Setup Routes and Server
	router := gateway.SetupRoutes(config, services)
	server := &http.Server{
		Addr:         ":" + config.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("INFO: Listening on port %s", config.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: HTTP server error: %v", err)
		}
	}()

	// 5. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Forced shutdown: %v", err)
	}

	log.Println("INFO: Server stopped.")
}
