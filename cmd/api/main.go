package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/securevote-api/internal/application/ballot"
	"github.com/securevote-api/internal/application/election"
	"github.com/securevote-api/internal/application/face"
	"github.com/securevote-api/internal/application/otp"
	"github.com/securevote-api/internal/application/session"
	"github.com/securevote-api/internal/application/verification"
	"github.com/securevote-api/internal/application/voter"
	"github.com/securevote-api/internal/config"
	"github.com/securevote-api/internal/infrastructure/awscfg"
	"github.com/securevote-api/internal/infrastructure/dynamo"
	"github.com/securevote-api/internal/infrastructure/embedding"
	"github.com/securevote-api/internal/infrastructure/google"
	jwtinfra "github.com/securevote-api/internal/infrastructure/jwt"
	s3infra "github.com/securevote-api/internal/infrastructure/s3"
	"github.com/securevote-api/internal/infrastructure/smtp"
	"github.com/securevote-api/internal/infrastructure/sns"
	transporthttp "github.com/securevote-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	awsCfg, err := awscfg.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	loc, err := time.LoadLocation(cfg.ElectionTimezone)
	if err != nil {
		log.Printf("WARN: unknown ELECTION_TIMEZONE %q, using UTC: %v", cfg.ElectionTimezone, err)
		loc = time.UTC
	}

	voterRepo := dynamo.NewVoterRepo(dynamoClient, cfg.DynamoTables.EligibleVoters, cfg.DynamoTables.EnrolledVoters)
	sessionRepo := dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	electionRepo := dynamo.NewElectionRepo(dynamoClient, cfg.DynamoTables.Elections, cfg.DynamoTables.Candidates)
	ballotRepo := dynamo.NewBallotRepo(dynamoClient, cfg.DynamoTables.Ballots)
	otpRepo := dynamo.NewOtpChallengeRepo(dynamoClient, cfg.DynamoTables.OtpChallenges)

	ledgerDeps := otp.LedgerDeps{
		Store:       otpRepo,
		Mailer:      smtp.NewMailer(cfg),
		TTL:         cfg.OTPTTL,
		SingleUse:   cfg.OTPSingleUse,
		MaxAttempts: cfg.OTPMaxAttempts,
	}
	if cfg.OTPSMS {
		snsCfg, err := awscfg.Load(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			log.Printf("WARN: SNS sender not available: %v", err)
		} else {
			ledgerDeps.SMS = sns.NewSender(snsCfg, cfg.AWSEndpointURL)
		}
	}

	matcher := face.Matcher{Threshold: cfg.FaceThreshold}
	verifyDeps := verification.ServiceDeps{
		Voters:    voterRepo,
		Elections: electionRepo,
		Ballots:   ballotRepo,
		Sessions:  sessionRepo,
		Ledger:    otp.NewLedger(ledgerDeps),
		Embedder:  embedding.NewClient(cfg.EmbeddingURL, cfg.FaceModel, cfg.EmbeddingTimeout),
		Guard:     face.NewGuard(voterRepo, matcher),
		Matcher:   matcher,
	}
	if cfg.ArchiveSnapshots {
		store := s3infra.NewStore(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.S3BucketName)
		verifyDeps.Archive = s3infra.NewSnapshotArchive(store)
	}

	voterSvc := voter.NewService(voter.ServiceDeps{
		Voters:    voterRepo,
		Ballots:   ballotRepo,
		Elections: electionRepo,
	})

	deps := &transporthttp.Deps{
		Tokens:   jwtProvider,
		Sessions: sessionRepo,
		SessionSvc: session.NewService(session.ServiceDeps{
			Sessions:          sessionRepo,
			Signer:            jwtProvider,
			Google:            google.NewVerifier(cfg.GoogleClientID),
			TTL:               cfg.SessionTTL,
			AdminUsername:     cfg.AdminUsername,
			AdminPasswordHash: cfg.AdminPasswordHash,
			AdminEmails:       cfg.AdminEmails,
		}),
		VerificationSvc: verification.NewService(verifyDeps),
		ElectionSvc: election.NewService(election.ServiceDeps{
			Elections: electionRepo,
			Ballots:   ballotRepo,
			Voters:    voterRepo,
			Location:  loc,
		}),
		BallotSvc: ballot.NewService(ballot.ServiceDeps{
			Elections: electionRepo,
			Ballots:   ballotRepo,
			Sessions:  sessionRepo,
		}),
		VoterSvc: voterSvc,
	}

	// Seed the eligible voter list from the roster file, if present.
	if _, err := voterSvc.ImportFile(ctx, cfg.VoterRosterPath); err != nil {
		log.Printf("WARN: roster import failed: %v", err)
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // face steps wait on the embedding provider
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	stop()
	log.Println("Server stopped")
}
