package service

import (
	"bytes"
	"context"
	"io"

	"dokan/internal/access"
	"dokan/internal/domain"
	"dokan/internal/export"
	"dokan/internal/ledger"
	"dokan/internal/session"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatHTML: "text/html; charset=utf-8",
}

// Download is a rendered file ready to be sent to the client.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportStatement renders the ledger in format. With day set only that
// day's entries are included; otherwise q filters the full report.
func (s *Service) ExportStatement(ctx context.Context, format Format, day string, q domain.TransactionQuery, lang domain.Language) (Download, error) {
	contentType, ok := contentTypes[format]
	if !ok {
		return Download{}, domain.Validation("format", "must be csv, xlsx or html")
	}
	if err := validDates(day); err != nil {
		return Download{}, err
	}
	_, st, err := s.read(ctx)
	if err != nil {
		return Download{}, err
	}

	if day != "" {
		q = domain.TransactionQuery{Date: day}
	}
	txs := ledger.Filter(st.Transactions, q)

	var buf bytes.Buffer
	switch format {
	case FormatCSV:
		err = export.WriteCSV(&buf, txs)
	case FormatXLSX:
		err = export.WriteXLSX(&buf, txs)
	case FormatHTML:
		title := "Full Report"
		if day != "" {
			title = "Statement " + day
		}
		err = export.WriteHTML(&buf, export.Statement{
			ShopName:     st.Profile.Name,
			Title:        title,
			Currency:     st.Profile.Currency,
			Language:     lang,
			Transactions: txs,
			Totals:       ledger.ComputeAggregate(txs, ledger.All),
		})
	}
	if err != nil {
		return Download{}, err
	}
	return Download{
		Filename:    export.Filename(day, s.now(), string(format)),
		ContentType: contentType,
		Body:        buf.Bytes(),
	}, nil
}

// ExportBackup dumps the whole shop. Only the owner may take a backup since
// it carries credential hashes.
func (s *Service) ExportBackup(ctx context.Context) (Download, error) {
	_, st, err := s.open(ctx, access.ManageProfile)
	if err != nil {
		return Download{}, err
	}
	var buf bytes.Buffer
	now := s.now()
	if err := export.WriteBackup(&buf, st.Get(), now); err != nil {
		return Download{}, err
	}
	return Download{
		Filename:    export.BackupFilename(now),
		ContentType: "application/json",
		Body:        buf.Bytes(),
	}, nil
}

// ImportBackup replaces the actor's shop with the backup in r. A backup of
// another shop is rejected.
func (s *Service) ImportBackup(ctx context.Context, r io.Reader) (domain.UserProfile, error) {
	restored, err := export.ReadBackup(r)
	if err != nil {
		return domain.UserProfile{}, err
	}
	next, err := s.mutate(ctx, access.ManageProfile, func(actor domain.Actor, st *session.State) error {
		if restored.Profile.ID != actor.ProfileID {
			return domain.Validation("profile.id", "backup belongs to another shop")
		}
		if domain.NormalizeEmail(restored.Profile.Email) != domain.NormalizeEmail(st.Profile.Email) {
			return domain.Validation("profile.email", "backup email does not match this shop")
		}
		*st = restored.Clone()
		return nil
	})
	if err != nil && !IsWarning(err) {
		return domain.UserProfile{}, err
	}
	s.logger.Info("backup restored", "profile_id", next.Profile.ID, "transactions", len(next.Transactions))
	return next.Profile.Redacted(), err
}
