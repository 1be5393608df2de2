package parser

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"unibook-bot/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	bookActionLabel   = "prenota"
	cancelActionLabel = "annulla"
	bookAction        = "prenota_corso"

	// The site marks full slots with this exact phrase inside the action
	// cell's attributes. If the site ever rewords it, those rows come back
	// as available again and the submit fails instead; there is nothing to
	// detect that locally.
	exhaustedMarker = "posti esauriti"
)

// ErrNoResultsTable reports a listing page without the expected results
// table. That is a layout change or an expired session, not a transient
// condition: the caller should report it, not retry blindly.
var ErrNoResultsTable = errors.New("results table not found")

var (
	// Cells are classified by content shape, not position, so the page may
	// reorder its columns without breaking extraction.
	dateCellRe = regexp.MustCompile(`^[0-9\-:\s]+$`)
	roomCellRe = regexp.MustCompile(`(?i)^aula`)

	bookArgsRe = regexp.MustCompile(`prenota\(([^)]+)\)`)
)

// Extractor turns fetched listing pages into booking candidates.
type Extractor struct {
	log *zap.Logger
}

func NewExtractor(log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{log: log}
}

// Extract parses one course listing page and returns its available slots,
// ready to book. Rows that fail to parse are skipped individually; only a
// missing results table aborts the whole page.
func (e *Extractor) Extract(courseID int, body string) ([]types.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return nil, ErrNoResultsTable
	}

	available := make([]types.Candidate, 0)
	tbody.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cand, err := extractRow(row)
		if err != nil {
			e.log.Warn("skipping unparseable row",
				zap.Int("course_id", courseID),
				zap.Error(err))
			return
		}
		if cand != nil && cand.Available {
			available = append(available, *cand)
		}
	})

	return available, nil
}

// extractRow classifies up to the first three cells of a row by content
// shape and builds a candidate from them. Returns (nil, nil) for rows that
// contribute nothing.
func extractRow(row *goquery.Selection) (*types.Candidate, error) {
	cells := row.Find("td")
	if cells.Length() == 0 {
		return nil, nil
	}

	var cand types.Candidate
	var rowErr error
	classified := false

	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i > 2 {
			return false
		}
		text := strings.TrimSpace(cell.Text())
		switch {
		case text == "":
			// ignore

		case text == bookActionLabel:
			classified = true
			if cellAttrsContain(cell, exhaustedMarker) {
				cand.Available = false
				return true
			}
			req, err := parseBookingAction(cell)
			if err != nil {
				rowErr = err
				return false
			}
			cand.Available = true
			cand.Request = req

		case text == cancelActionLabel:
			// Already booked by someone; cannot be targeted.
			classified = true
			cand.Available = false

		case dateCellRe.MatchString(text):
			classified = true
			cand.Date = text

		case roomCellRe.MatchString(text):
			classified = true
			cand.Room = text
		}
		return true
	})

	if rowErr != nil {
		return nil, rowErr
	}
	if !classified {
		return nil, nil
	}
	return &cand, nil
}

// parseBookingAction pulls the five positional parameters out of the cell's
// inline prenota(...) call and builds the request for the booking form.
func parseBookingAction(cell *goquery.Selection) (*types.BookingRequest, error) {
	markup, err := goquery.OuterHtml(cell)
	if err != nil {
		return nil, fmt.Errorf("render action cell: %w", err)
	}

	m := bookArgsRe.FindStringSubmatch(html.UnescapeString(markup))
	if m == nil {
		return nil, errors.New("no inline booking action in cell")
	}

	parts := strings.Split(m[1], ",")
	if len(parts) != 5 {
		return nil, fmt.Errorf("booking action has %d arguments, want 5", len(parts))
	}

	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = strings.TrimSpace(strings.ReplaceAll(p, `"`, ""))
	}

	return &types.BookingRequest{
		ModuleID:   args[0],
		DateP:      args[1],
		ScheduleID: args[2],
		SlotNumber: args[3],
		BookingID:  args[4],
		Action:     bookAction,
		Nonce:      uuid.NewString(),
	}, nil
}

// cellAttrsContain reports whether any attribute of the cell contains the
// given marker text.
func cellAttrsContain(cell *goquery.Selection, marker string) bool {
	for _, node := range cell.Nodes {
		for _, attr := range node.Attr {
			if strings.Contains(strings.ToLower(attr.Val), marker) {
				return true
			}
		}
	}
	return false
}
