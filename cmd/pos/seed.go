package main

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/matheusmosca/retail-pos/pkg/client"
)

// catalogFile is the seed document:
//
//	products:
//	  - name: Apples
//	    quantity: "10.0"
//	    unit_price: "2.00"
type catalogFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	Name      string `yaml:"name"`
	Quantity  string `yaml:"quantity"`
	UnitPrice string `yaml:"unit_price"`
}

type seedResult struct {
	Created   int
	Restocked int
	Skipped   int
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "load products from a YAML catalog through the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "catalog YAML file", Required: true},
			&cli.StringFlag{Name: "api", Value: "http://localhost:8080", Usage: "POS API base URL", EnvVars: []string{"POS_API_URL"}},
			&cli.BoolFlag{Name: "restock", Usage: "add the quantity to products that already exist"},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("file"))
			if err != nil {
				return errors.Wrap(err, "failed to open catalog")
			}
			defer f.Close()

			products, err := parseCatalog(f)
			if err != nil {
				return err
			}

			logger := logrus.New()
			result, err := seedCatalog(c.Context, client.New(c.String("api")), products, c.Bool("restock"), logger)
			if err != nil {
				return err
			}

			logger.WithFields(logrus.Fields{
				"created":   result.Created,
				"restocked": result.Restocked,
				"skipped":   result.Skipped,
			}).Info("✅ [SEED] catalog loaded")
			return nil
		},
	}
}

func parseCatalog(r io.Reader) ([]client.ProductInput, error) {
	var doc catalogFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}

	products := make([]client.ProductInput, 0, len(doc.Products))
	for i, p := range doc.Products {
		quantity, err := decimal.NewFromString(p.Quantity)
		if err != nil {
			return nil, errors.Wrapf(err, "product %d (%s): bad quantity", i, p.Name)
		}
		price, err := decimal.NewFromString(p.UnitPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "product %d (%s): bad unit_price", i, p.Name)
		}
		products = append(products, client.ProductInput{
			ProductName:       p.Name,
			QuantityAvailable: quantity,
			UnitPrice:         price,
		})
	}
	return products, nil
}

// seedCatalog creates every missing product. Existing ones (matched by exact
// name) are restocked when restock is set and skipped otherwise.
func seedCatalog(ctx context.Context, api *client.Client, products []client.ProductInput, restock bool, logger logrus.FieldLogger) (seedResult, error) {
	var result seedResult

	for _, p := range products {
		matches, err := api.SearchProducts(ctx, p.ProductName, true)
		if err != nil {
			return result, err
		}

		var existingID int64
		for _, m := range matches {
			if m.ProductName == p.ProductName {
				existingID = m.ProductID
				break
			}
		}

		switch {
		case existingID == 0:
			created, err := api.CreateProduct(ctx, p)
			if err != nil {
				return result, errors.Wrapf(err, "failed to create %s", p.ProductName)
			}
			logger.WithField("product_id", created.ProductID).Infof("➕ [SEED] created %s", p.ProductName)
			result.Created++
		case restock && p.QuantityAvailable.IsPositive():
			if _, err := api.AdjustStock(ctx, existingID, p.QuantityAvailable); err != nil {
				return result, errors.Wrapf(err, "failed to restock %s", p.ProductName)
			}
			logger.WithField("product_id", existingID).Infof("📦 [SEED] restocked %s", p.ProductName)
			result.Restocked++
		default:
			result.Skipped++
		}
	}
	return result, nil
}
