package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/joho/godotenv"
	"github.com/loophealth/voicebot/internal/hospital"
	"github.com/loophealth/voicebot/pkg/utils"
	"github.com/sirupsen/logrus"
)

// DirectoryPage is one public hospital listing to scrape. Every hospital found
// on the page inherits the page's city.
type DirectoryPage struct {
	City string
	URL  string
}

var directoryPages = []DirectoryPage{
	{City: "Bangalore", URL: "https://en.wikipedia.org/wiki/List_of_hospitals_in_Bangalore"},
	{City: "Delhi", URL: "https://en.wikipedia.org/wiki/List_of_hospitals_in_Delhi"},
	{City: "Mumbai", URL: "https://en.wikipedia.org/wiki/List_of_hospitals_in_Mumbai"},
	{City: "Chennai", URL: "https://en.wikipedia.org/wiki/List_of_hospitals_in_Chennai"},
	{City: "Hyderabad", URL: "https://en.wikipedia.org/wiki/List_of_hospitals_in_Hyderabad"},
}

var (
	dryRun    = flag.Bool("dry-run", false, "Don't write the CSV, just print what would be written")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	pageLimit = flag.Int("limit", 0, "Limit number of directory pages to scrape (0 = all)")
	outPath   = flag.String("out", "hospital.csv", "Output CSV path")
	delay     = flag.Duration("delay", 2*time.Second, "Delay between requests")
)

// HospitalSeeder scrapes public hospital directories into the dataset CSV.
type HospitalSeeder struct {
	logger  *logrus.Logger
	records []hospital.Record
	seen    map[string]bool
	errors  []error
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	utils.InitLogger()
	logger := utils.GetLogger()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logger.Info("Starting hospital directory seeder...")

	seeder := &HospitalSeeder{
		logger: logger,
		seen:   make(map[string]bool),
	}

	pages := directoryPages
	if *pageLimit > 0 && *pageLimit < len(pages) {
		pages = pages[:*pageLimit]
		logger.WithField("limit", *pageLimit).Info("Limited pages to scrape")
	}

	for i, page := range pages {
		logger.WithFields(logrus.Fields{
			"city":     page.City,
			"progress": fmt.Sprintf("%d/%d", i+1, len(pages)),
		}).Info("Scraping directory page")

		if err := seeder.scrapePage(page); err != nil {
			logger.WithError(err).WithField("city", page.City).Error("Failed to scrape page")
			seeder.errors = append(seeder.errors, fmt.Errorf("failed to scrape %s: %w", page.City, err))
		}
	}

	logger.WithFields(logrus.Fields{
		"records": len(seeder.records),
		"errors":  len(seeder.errors),
	}).Info("Scraping completed")

	if len(seeder.records) == 0 {
		logger.Fatal("No hospitals scraped, refusing to write an empty dataset")
	}

	if *dryRun {
		for _, record := range seeder.records {
			fmt.Printf("%s | %s | %s\n", record.Name, record.City, record.Address)
		}
		logger.Info("Dry run, CSV not written")
		return
	}

	if err := writeCSV(*outPath, seeder.records); err != nil {
		logger.WithError(err).Fatal("Failed to write CSV")
	}

	logger.WithFields(logrus.Fields{
		"path":    *outPath,
		"records": len(seeder.records),
	}).Info("Dataset written successfully")
}

func (s *HospitalSeeder) scrapePage(page DirectoryPage) error {
	c := colly.NewCollector(
		colly.UserAgent("VoicebotSeeder/1.0 (+https://github.com/loophealth/voicebot)"),
	)

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*wikipedia.org",
		Parallelism: 1,
		Delay:       *delay,
	})
	c.SetRequestTimeout(30 * time.Second)

	// Directory pages list hospitals either in wikitables or plain lists
	// inside the article body. Take the first cell of each table row and
	// every list item link.
	c.OnHTML("table.wikitable tbody tr", func(e *colly.HTMLElement) {
		name := cleanName(e.ChildText("td:first-child"))
		address := strings.TrimSpace(e.ChildText("td:nth-child(2)"))
		s.add(name, page.City, address)
	})

	c.OnHTML("#mw-content-text ul li > a:first-child", func(e *colly.HTMLElement) {
		s.add(cleanName(e.Text), page.City, "")
	})

	c.OnError(func(r *colly.Response, err error) {
		s.logger.WithError(err).WithField("url", r.Request.URL.String()).Error("Request failed")
	})

	if err := c.Visit(page.URL); err != nil {
		return err
	}
	c.Wait()
	return nil
}

func (s *HospitalSeeder) add(name, city, address string) {
	if name == "" || !looksLikeHospital(name) {
		return
	}

	key := hospital.Normalize(name + " " + city)
	if s.seen[key] {
		return
	}
	s.seen[key] = true

	s.records = append(s.records, hospital.Record{
		ID:        len(s.records) + 1,
		Name:      name,
		City:      city,
		Address:   address,
		InNetwork: true,
	})

	s.logger.WithFields(logrus.Fields{
		"name": name,
		"city": city,
	}).Debug("Hospital added")
}

func cleanName(raw string) string {
	name := strings.TrimSpace(raw)
	// Strip footnote markers like [1] that Wikipedia appends to cells.
	if idx := strings.Index(name, "["); idx > 0 {
		name = strings.TrimSpace(name[:idx])
	}
	return name
}

func looksLikeHospital(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"hospital", "clinic", "medical", "institute", "health", "nursing"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func writeCSV(path string, records []hospital.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Name", "City", "Address", "Network Status"}); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{record.Name, record.City, record.Address, record.NetworkStatus()}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}
