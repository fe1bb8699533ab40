package clinic

import (
	"errors"
	"time"
)

// ClosedDay is the fixed weekly day on which no branch accepts
// appointments.
const ClosedDay = time.Tuesday

const DefaultDailyLimit = 20

var ErrInvalidDate = errors.New("invalid date format")

type Branch struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Subtitle string `json:"subtitle"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Hours    string `json:"hours"`
}

type Service struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Directory is the immutable branch and service catalog. It is built
// once at startup and shared read-only afterwards.
type Directory struct {
	branches   []Branch
	services   []Service
	branchSet  map[string]struct{}
	serviceSet map[string]struct{}
}

func NewDirectory(branches []Branch, services []Service) *Directory {
	d := &Directory{
		branches:   branches,
		services:   services,
		branchSet:  make(map[string]struct{}, len(branches)),
		serviceSet: make(map[string]struct{}, len(services)),
	}
	for _, b := range branches {
		d.branchSet[b.Slug] = struct{}{}
	}
	for _, s := range services {
		d.serviceSet[s.Value] = struct{}{}
	}
	return d
}

// Default returns the MaxSmile directory: three Metro Manila branches
// and the fixed treatment catalog.
func Default() *Directory {
	branches := []Branch{
		{
			Slug:     "manila-main",
			Name:     "Manila Main",
			Subtitle: "MaxSmile Dental Clinic",
			Address:  "Manila, Philippines",
			Phone:    "+639000000000",
			Hours:    "Mon–Sat • 9:00 AM – 6:00 PM",
		},
		{
			Slug:     "pateros",
			Name:     "Pateros",
			Subtitle: "MaxSmile Dental Clinic",
			Address:  "Pateros, Philippines",
			Phone:    "+639000000000",
			Hours:    "Mon–Sat • 9:00 AM – 6:00 PM",
		},
		{
			Slug:     "paranaque",
			Name:     "Parañaque",
			Subtitle: "MaxSmile Dental Clinic",
			Address:  "Parañaque, Philippines",
			Phone:    "+639000000000",
			Hours:    "Mon–Sat • 9:00 AM – 6:00 PM",
		},
	}
	services := []Service{
		{Value: "braces", Label: "Braces"},
		{Value: "dentures_pustiso", Label: "Dentures (Pustiso)"},
		{Value: "fixed_bridge", Label: "Fixed Bridge"},
		{Value: "implants", Label: "Implants"},
		{Value: "jacket_crown", Label: "Jacket Crown"},
		{Value: "laser_gum_contouring", Label: "Laser Gum Contouring"},
		{Value: "oral_prophylaxis_cleaning", Label: "Oral Prophylaxis (Cleaning)"},
		{Value: "panoramic_x_ray", Label: "Panoramic X-Ray"},
		{Value: "periapical_x_ray", Label: "Periapical X-Ray"},
		{Value: "retainers", Label: "Retainers"},
		{Value: "root_canal_treatment", Label: "Root Canal Treatment"},
		{Value: "surgery", Label: "Surgery"},
		{Value: "teeth_whitening", Label: "Teeth Whitening"},
		{Value: "tooth_extraction_bunot", Label: "Tooth Extraction (Bunot)"},
		{Value: "tooth_restoration_pasta", Label: "Tooth Restoration (Pasta)"},
		{Value: "veneers", Label: "Veneers"},
	}
	return NewDirectory(branches, services)
}

func (d *Directory) Branches() []Branch {
	return d.branches
}

func (d *Directory) Services() []Service {
	return d.services
}

func (d *Directory) IsBranch(slug string) bool {
	_, ok := d.branchSet[slug]
	return ok
}

func (d *Directory) IsService(value string) bool {
	_, ok := d.serviceSet[value]
	return ok
}

// ParseDate parses an appointment date in YYYY-MM-DD form. Values whose
// year/month/day do not round-trip (2024-02-31) are rejected.
func ParseDate(dateStr string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if date.Format("2006-01-02") != dateStr {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

// IsClosedDay reports whether the date falls on the weekly closed day.
func IsClosedDay(date time.Time) bool {
	return date.Weekday() == ClosedDay
}
