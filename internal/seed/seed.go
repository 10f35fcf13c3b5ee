// Package seed loads TOML fixture files and applies them through the restaurant service.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
)

// File is the decoded seed document.
type File struct {
	Admins    []Admin    `toml:"admin"`
	Students  []Student  `toml:"student"`
	Offerings []Offering `toml:"offering"`
}

// Admin seeds one administrator.
type Admin struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Role     string `toml:"role"`
}

// Student seeds one student. Wallet is a decimal amount such as "50.00".
type Student struct {
	Number     string `toml:"number"`
	Name       string `toml:"name"`
	Email      string `toml:"email"`
	University string `toml:"university"`
	Password   string `toml:"password"`
	Wallet     string `toml:"wallet"`
	Points     int64  `toml:"points"`
}

// Offering seeds one menu offering. Price is a decimal amount; empty uses the default.
type Offering struct {
	Weekday  string   `toml:"weekday"`
	MealSlot string   `toml:"meal_slot"`
	Title    string   `toml:"title"`
	Tags     []string `toml:"tags"`
	Status   string   `toml:"status"`
	Price    string   `toml:"price"`
}

// Result counts the records created and skipped by Apply.
type Result struct {
	AdminsCreated    int
	StudentsCreated  int
	OfferingsCreated int
	Skipped          int
}

// Load reads and decodes a seed file.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(string(raw))
}

// Parse decodes a seed document and rejects unknown keys.
func Parse(document string) (File, error) {
	var file File
	metadata, err := toml.Decode(document, &file)
	if err != nil {
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return File{}, fmt.Errorf("decode seed file: unknown keys %s", strings.Join(keys, ", "))
	}
	return file, nil
}

// Apply creates every record in file. Records that already exist are skipped so a
// seed can be applied repeatedly.
func Apply(ctx context.Context, service *restaurant.Service, file File) (Result, error) {
	var result Result
	for _, admin := range file.Admins {
		_, err := service.CreateAdmin(ctx, restaurant.AdminRegistration{
			Name:     admin.Name,
			Email:    admin.Email,
			Password: admin.Password,
			Role:     admin.Role,
		})
		if errors.Is(err, restaurant.ErrDuplicateAdmin) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("seed admin %s: %w", admin.Email, err)
		}
		result.AdminsCreated++
	}
	for _, student := range file.Students {
		enrollment, err := student.enrollment()
		if err != nil {
			return result, fmt.Errorf("seed student %s: %w", student.Number, err)
		}
		_, err = service.CreateStudent(ctx, enrollment)
		if errors.Is(err, restaurant.ErrDuplicateStudent) {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("seed student %s: %w", student.Number, err)
		}
		result.StudentsCreated++
	}
	for _, offering := range file.Offerings {
		input, err := offering.input()
		if err != nil {
			return result, fmt.Errorf("seed offering %s: %w", offering.Title, err)
		}
		exists, err := offeringExists(ctx, service, input)
		if err != nil {
			return result, fmt.Errorf("seed offering %s: %w", offering.Title, err)
		}
		if exists {
			result.Skipped++
			continue
		}
		if _, err := service.CreateOffering(ctx, input); err != nil {
			return result, fmt.Errorf("seed offering %s: %w", offering.Title, err)
		}
		result.OfferingsCreated++
	}
	return result, nil
}

func (student Student) enrollment() (restaurant.StudentEnrollment, error) {
	enrollment := restaurant.StudentEnrollment{
		StudentRegistration: restaurant.StudentRegistration{
			Number:     student.Number,
			Name:       student.Name,
			Email:      student.Email,
			University: student.University,
			Password:   student.Password,
		},
	}
	if strings.TrimSpace(student.Wallet) != "" {
		wallet, err := restaurant.ParseAmountCents(student.Wallet)
		if err != nil {
			return restaurant.StudentEnrollment{}, err
		}
		enrollment.InitialWallet = wallet
	}
	points, err := restaurant.NewPoints(student.Points)
	if err != nil {
		return restaurant.StudentEnrollment{}, err
	}
	enrollment.InitialPoints = points
	return enrollment, nil
}

func (offering Offering) input() (restaurant.OfferingInput, error) {
	weekday, err := restaurant.ParseWeekday(offering.Weekday)
	if err != nil {
		return restaurant.OfferingInput{}, err
	}
	slot, err := restaurant.ParseMealSlot(offering.MealSlot)
	if err != nil {
		return restaurant.OfferingInput{}, err
	}
	input := restaurant.OfferingInput{
		Weekday:  weekday,
		MealSlot: slot,
		Title:    offering.Title,
		Tags:     offering.Tags,
	}
	if strings.TrimSpace(offering.Status) != "" {
		if input.Status, err = restaurant.ParseMenuStatus(offering.Status); err != nil {
			return restaurant.OfferingInput{}, err
		}
	}
	if strings.TrimSpace(offering.Price) != "" {
		if input.PriceCents, err = restaurant.ParsePositiveAmountCents(offering.Price); err != nil {
			return restaurant.OfferingInput{}, err
		}
	}
	return input, nil
}

func offeringExists(ctx context.Context, service *restaurant.Service, input restaurant.OfferingInput) (bool, error) {
	existing, err := service.ListOfferings(ctx, restaurant.MenuFilter{Weekday: input.Weekday, MealSlot: input.MealSlot})
	if err != nil {
		return false, err
	}
	for _, offering := range existing {
		if strings.EqualFold(offering.Title, strings.TrimSpace(input.Title)) {
			return true, nil
		}
	}
	return false, nil
}
