// Package fixture generates realistic BanBajío movements and statement
// exports with gofakeit. It backs the sample-statement command and the
// property-style tests of the pipeline.
package fixture

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
)

// Generator produces movements from a seeded faker.
type Generator struct {
	faker *gofakeit.Faker
	from  time.Time
	to    time.Time
}

// NewGenerator creates a generator with a random seed.
func NewGenerator() *Generator {
	return NewGeneratorWithSeed(0)
}

// NewGeneratorWithSeed creates a generator with a specific seed for
// reproducibility.
func NewGeneratorWithSeed(seed int64) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		from:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		to:    time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// ============================================================================
// Movement Generation
// ============================================================================

var (
	banks     = []string{"BBVA MEXICO", "BANORTE", "SANTANDER", "HSBC", "SCOTIABANK", "AZTECA", "BANREGIO"}
	merchants = []string{"OXXO", "WALMART", "LIVERPOOL", "SORIANA", "COSTCO", "CHEDRAUI", "HEB"}
	billers   = []string{"CFE", "TELMEX", "TOTALPLAY", "MEGACABLE", "IZZI"}

	keyPrefixes = []string{"BNET", "MBAN", "BB02", "HSBC", "SANT"}
)

type movement struct {
	typ    model.Type
	credit bool
	desc   func(g *Generator) string
}

var movements = []movement{
	{model.TypeSPEIReceived, true, func(g *Generator) string {
		return "SPEI RECIBIDO " + g.pick(banks) + " clave de rastreo: " + g.trackingKey()
	}},
	{model.TypeSPEISent, false, func(g *Generator) string {
		return "SPEI ENVIADO " + g.pick(banks) + " clave de rastreo: " + g.trackingKey()
	}},
	{model.TypeFee, false, func(*Generator) string { return "COMISION POR MANEJO DE CUENTA" }},
	{model.TypePOS, false, func(g *Generator) string { return "COMPRA POS " + g.pick(merchants) }},
	{model.TypeDirectDebit, false, func(g *Generator) string { return "DOMICILIACION " + g.pick(billers) }},
	{model.TypeDeposit, true, func(g *Generator) string { return "Depósito en efectivo SUC " + g.faker.DigitN(4) }},
	{model.TypeWithdrawal, false, func(g *Generator) string { return "RETIRO CAJERO " + g.faker.DigitN(4) }},
	{model.TypeFundsDelivery, true, func(*Generator) string { return "ENTREGA DE RECURSOS" }},
}

// Transaction generates a single movement. UID is left empty.
func (g *Generator) Transaction() model.Transaction {
	m := movements[g.faker.Number(0, len(movements)-1)]
	amount := decimal.New(int64(g.faker.Number(100, 5000000)), -2)

	tx := model.Transaction{
		Date:        civil.DateOf(g.faker.DateRange(g.from, g.to)),
		Time:        fmt.Sprintf("%02d:%02d:%02d", g.faker.Number(0, 23), g.faker.Number(0, 59), g.faker.Number(0, 59)),
		ReceiptRef:  g.faker.DigitN(6),
		Description: m.desc(g),
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
		Type:        m.typ,
	}
	if m.credit {
		tx.Credit = amount
	} else {
		tx.Debit = amount
	}
	if m.typ.IsSPEI() {
		tx.TrackingKey = trackingKeyOf(tx.Description)
	}
	return tx
}

// Transactions generates n movements with 1-based row indexes.
func (g *Generator) Transactions(n int) []model.Transaction {
	txs := make([]model.Transaction, n)
	for i := range txs {
		txs[i] = g.Transaction()
		txs[i].RowIndex = i + 1
	}
	return txs
}

func (g *Generator) pick(options []string) string {
	return g.faker.RandomString(options)
}

func (g *Generator) trackingKey() string {
	return g.pick(keyPrefixes) + g.faker.DigitN(14)
}

func trackingKeyOf(desc string) string {
	_, key, _ := strings.Cut(desc, "clave de rastreo: ")
	return key
}

// ============================================================================
// Statement Rendering
// ============================================================================

// BajioExport renders txs in the BanBajío export layout: a metadata line,
// the fixed header and one comma-delimited row per movement with a running
// balance.
func BajioExport(account string, txs []model.Transaction) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"Cuenta: " + account, "Movimientos"})
	_ = w.Write([]string{"#", "Fecha Movimiento", "Hora", "Recibo", "Descripción", "Cargos", "Abonos", "Saldo"})

	balance := decimal.Zero
	for i, tx := range txs {
		balance = balance.Add(tx.Credit).Sub(tx.Debit)
		_ = w.Write([]string{
			strconv.Itoa(i + 1),
			tx.Date.In(time.UTC).Format("02-Jan-2006"),
			tx.Time,
			tx.ReceiptRef,
			tx.Description,
			amountCell(tx.Debit),
			amountCell(tx.Credit),
			balance.StringFixed(2),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func amountCell(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.StringFixed(2)
}
