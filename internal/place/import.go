package place

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/venue-registry/internal/db"
	"github.com/sells-group/venue-registry/internal/model"
	"github.com/sells-group/venue-registry/internal/schema"
)

// importNamespace seeds deterministic ids for imported places without one,
// so re-importing the same file updates rather than duplicates.
var importNamespace = uuid.MustParse("6f1c3a2e-9b8d-4e57-a0f4-2d7c5b1e8a93")

// ImportFile is the administrative import document. YAML and JSON are both
// accepted.
type ImportFile struct {
	Places []ImportPlace `yaml:"places"`
}

// ImportPlace is one directory listing.
type ImportPlace struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Country      string        `yaml:"country"`
	City         string        `yaml:"city"`
	Address      string        `yaml:"address"`
	Lat          *float64      `yaml:"lat"`
	Lng          *float64      `yaml:"lng"`
	Category     string        `yaml:"category"`
	Verification string        `yaml:"verification"`
	About        string        `yaml:"about"`
	Hours        string        `yaml:"hours"`
	PaymentNote  string        `yaml:"paymentNote"`
	Assets       []importAsset `yaml:"acceptedAssets"`
}

// importAsset accepts a bare symbol or an {asset, network, preferred} map.
type importAsset model.AcceptedAsset

func (a *importAsset) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*a = importAsset{Asset: node.Value}
		return nil
	}
	var m struct {
		Asset     string `yaml:"asset"`
		Network   string `yaml:"network"`
		Preferred bool   `yaml:"preferred"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	*a = importAsset{Asset: m.Asset, Network: m.Network, Preferred: m.Preferred}
	return nil
}

// ImportReport summarizes an import run.
type ImportReport struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Payments int `json:"payments"`
}

// ParseImport decodes an import document.
func ParseImport(r io.Reader) (ImportFile, error) {
	var f ImportFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return f, model.FieldError(model.CodeInvalidPayload, "", "import file: %v", err)
	}
	for i, p := range f.Places {
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Country) == "" {
			return f, model.FieldError(model.CodeInvalidPayload, "places", "entry %d: name and country are required", i)
		}
		if p.Verification != "" && !model.VerificationLevel(p.Verification).Valid() {
			return f, model.FieldError(model.CodeInvalidPayload, "verification", "entry %d: unknown level %q", i, p.Verification)
		}
	}
	return f, nil
}

// Import writes every place in f in one transaction, through the same
// capability-aware writers promotion uses.
func Import(ctx context.Context, pool db.Pool, negotiator *schema.Negotiator, f ImportFile) (ImportReport, error) {
	log := zap.L().With(zap.String("component", "place.import"))
	var rep ImportReport
	at := time.Now().UTC()

	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		c, err := negotiator.Negotiate(ctx, tx)
		if err != nil {
			return err
		}
		for _, p := range f.Places {
			pl := p.toPlace()
			inserted, err := Upsert(ctx, tx, c, pl, at)
			if err != nil {
				return err
			}
			if inserted {
				rep.Created++
			} else {
				rep.Updated++
			}
			if err := UpsertVerification(ctx, tx, c, pl.ID, pl.Verification, nil, at); err != nil {
				return err
			}
			n, err := InsertPayments(ctx, tx, c, pl.ID, pl.Payments, at)
			if err != nil {
				return err
			}
			rep.Payments += n
		}
		return nil
	})
	if err != nil {
		return ImportReport{}, eris.Wrap(err, "place: import")
	}
	log.Info("import complete",
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("payments", rep.Payments),
	)
	return rep, nil
}

func (p ImportPlace) toPlace() model.Place {
	level := model.VerificationLevel(p.Verification)
	if level == "" {
		level = model.VerificationDirectory
	}
	id := p.ID
	if id == "" {
		key := strings.ToLower(strings.Join([]string{p.Name, p.Country, p.City, p.Address}, "|"))
		id = uuid.NewSHA1(importNamespace, []byte(key)).String()
	}
	assets := make([]model.AcceptedAsset, len(p.Assets))
	for i, a := range p.Assets {
		assets[i] = model.AcceptedAsset(a)
	}
	pl := model.PlaceFromPayload(id, model.Payload{
		Name:        p.Name,
		Country:     p.Country,
		City:        p.City,
		Address:     p.Address,
		Lat:         p.Lat,
		Lng:         p.Lng,
		Category:    p.Category,
		About:       p.About,
		Hours:       p.Hours,
		PaymentNote: p.PaymentNote,
	}, level)
	pl.Payments = model.NormalizeAssets(assets)
	return pl
}
