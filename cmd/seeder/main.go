// cmd/seeder/main.go
//
// Seeds a demo company with recipients, a template and a draft campaign so
// the pipeline can be exercised end to end against a local stack.
package main

import (
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lurehook/lurehook-backend/internal/config"
	"github.com/lurehook/lurehook-backend/internal/db"
	"github.com/lurehook/lurehook-backend/internal/model"
	"github.com/lurehook/lurehook-backend/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	recipientRepo := &repository.RecipientRepository{DB: database}
	templateRepo := &repository.EmailTemplateRepository{DB: database}
	campaignRepo := &repository.CampaignRepository{DB: database}
	targetRepo := &repository.CampaignTargetRepository{DB: database}

	companyID := uuid.New()
	log.Printf("seeding company %s", companyID)

	recipients := []*model.Recipient{
		{CompanyID: companyID, Email: "alice@acme.test", FirstName: "Alice", LastName: "Mwangi"},
		{CompanyID: companyID, Email: "brian@acme.test", FirstName: "Brian", LastName: "Otieno"},
		{CompanyID: companyID, Email: "carol@acme.test", FirstName: "Carol", LastName: "Njeri"},
	}
	for _, rec := range recipients {
		if err := recipientRepo.Create(rec); err != nil {
			log.Fatalf("seed recipient %s: %v", rec.Email, err)
		}
	}

	template := &model.EmailTemplate{
		CompanyID: companyID,
		Name:      "Password expiry notice",
		Subject:   "Action required: your password expires today, {{first_name}}",
		BodyHTML: `<html><body>
<p>Hi {{recipient_name}},</p>
<p>Your account password expires today. Reset it now to avoid losing access:</p>
<p><a href="{{phishing_url}}">Reset my password</a></p>
<p>IT Service Desk</p>
</body></html>`,
	}
	if err := templateRepo.Create(template); err != nil {
		log.Fatalf("seed template: %v", err)
	}

	campaign := &model.Campaign{
		CompanyID:   companyID,
		Name:        "Q3 password expiry drill",
		Description: "Baseline phishing awareness test for the whole office",
		TemplateID:  &template.ID,
	}
	if err := campaignRepo.Create(campaign); err != nil {
		log.Fatalf("seed campaign: %v", err)
	}

	for _, rec := range recipients {
		target := &model.CampaignTarget{
			CampaignID:  campaign.ID,
			RecipientID: rec.ID,
		}
		if err := targetRepo.Create(target); err != nil {
			log.Fatalf("seed target for %s: %v", rec.Email, err)
		}
	}

	log.Printf("seeded campaign %s with %d targets (company %s)",
		campaign.ID, len(recipients), companyID)
}
