// Command extract_generator produces sample extract files for local runs:
// an order extract, a BOM extract, an inventory CSV and an issue extract,
// with a controlled amount of noise (legacy stock, unmatched orders,
// duplicate issue lines, malformed quantities).
//
// Usage:
//
//	go run extract_generator.go -output-dir ../generated -orders 50 -seed 42
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var completedStatuses = []string{"Completed", "完成", "Completado"}

type orderRow struct {
	ShopOrder  string  `json:"shopOrder"`
	StatusDesc string  `json:"statusDesc"`
	QtyOrdered float64 `json:"qtyOrdered"`
	QtyDone    float64 `json:"qtyDone"`
}

type bomRow struct {
	ShopOrder    string  `json:"shopOrder"`
	ComponentGbo string  `json:"componentGbo"`
	Qty          float64 `json:"qty"`
	SumQty       float64 `json:"sumQty"`
	SendQty      float64 `json:"sendQty"`
}

type issueRow struct {
	InstructionDocID string  `json:"_instructionDocId"`
	DemandListNumber string  `json:"_demandListNumber"`
	ComponentCode    string  `json:"componentCode"`
	WorkOrderNum     string  `json:"_workOrderNum"`
	RelatedWoLine    string  `json:"relatedWoLine"`
	DemandQuantity   float64 `json:"demandQuantity"`
	ActualQuantity   float64 `json:"actualQuantity"`
	Status           string  `json:"status"`
	ProductionLine   string  `json:"_productionLine"`
	WareHouse        string  `json:"_wareHouse"`
	DocStatus        string  `json:"_docStatus"`
	PpStartTime      string  `json:"_ppStartTime"`
}

func main() {
	var (
		outputDir  = flag.String("output-dir", "../generated", "output directory")
		orderCount = flag.Int("orders", 50, "number of production orders")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	orders := make([]orderRow, 0, *orderCount)
	var boms []bomRow
	var issues []issueRow

	invFile, err := os.Create(filepath.Join(*outputDir, "inventory.csv"))
	if err != nil {
		log.Fatalf("create inventory.csv: %v", err)
	}
	defer invFile.Close()
	inv := csv.NewWriter(invFile)
	defer inv.Flush()
	inv.Write([]string{"指定工单", "物料", "现存量", "条码", "物料描述", "线边仓描述", "单位", "接收时间", "最新发料单时间"})

	now := time.Now()
	docSeq := 0

	for i := 1; i <= *orderCount; i++ {
		orderNo := fmt.Sprintf("WO%05d", i)
		completed := rng.Float64() < 0.6
		status := "Released"
		if completed {
			status = completedStatuses[rng.Intn(len(completedStatuses))]
		}
		qtyOrdered := float64(10 + rng.Intn(90))
		qtyDone := qtyOrdered
		if !completed {
			qtyDone = qtyOrdered * rng.Float64()
		}
		orders = append(orders, orderRow{orderNo, status, qtyOrdered, qtyDone})

		for c := 0; c < 2+rng.Intn(3); c++ {
			material := fmt.Sprintf("M%04d", rng.Intn(200))
			unitQty := float64(1 + rng.Intn(4))
			boms = append(boms, bomRow{orderNo, material, unitQty, unitQty * qtyOrdered, unitQty * qtyDone})

			// Leftover stock for some completed orders; a fraction of the
			// rows is pre-cutover legacy stock.
			if completed && rng.Float64() < 0.3 {
				receive := now.AddDate(0, 0, -rng.Intn(20))
				if rng.Float64() < 0.15 {
					receive = receive.AddDate(-1, 0, 0)
				}
				qty := fmt.Sprintf("%.2f", 1+rng.Float64()*20)
				if rng.Float64() < 0.05 {
					qty = "1,234.5"
				}
				inv.Write([]string{
					orderNo, material, qty,
					fmt.Sprintf("BC%08d", rng.Intn(100000000)),
					"Component " + material,
					fmt.Sprintf("LINE-%c", 'A'+rng.Intn(4)),
					"PCS",
					receive.Format("2006/1/2 15:04:05"),
					"",
				})
			}

			if rng.Float64() < 0.4 {
				docSeq++
				demand := unitQty * qtyOrdered
				actual := demand
				if rng.Float64() < 0.25 {
					actual = demand * (1 + rng.Float64()*0.3)
				}
				row := issueRow{
					InstructionDocID: fmt.Sprintf("DOC%06d", docSeq),
					DemandListNumber: fmt.Sprintf("PL-%06d", docSeq),
					ComponentCode:    material,
					WorkOrderNum:     orderNo,
					DemandQuantity:   demand,
					ActualQuantity:   actual,
					Status:           "issued",
					ProductionLine:   fmt.Sprintf("L%d", 1+rng.Intn(6)),
					WareHouse:        "WH1",
					DocStatus:        "closed",
					PpStartTime:      now.AddDate(0, 0, -rng.Intn(30)).Format("2006-01-02"),
				}
				issues = append(issues, row)
				// Simulate the same line appearing on a second source page.
				if rng.Float64() < 0.1 {
					issues = append(issues, row)
				}
			}
		}
	}

	// Stock pointing at an order the MES does not know.
	inv.Write([]string{"WO99999", "M9999", "5", "BC99999999", "Orphan", "LINE-A", "PCS",
		now.AddDate(0, 0, -3).Format("2006-01-02 15:04:05"), ""})

	writeJSON(filepath.Join(*outputDir, "orders.json"), orders)
	writeJSON(filepath.Join(*outputDir, "bom.json"), boms)
	writeJSON(filepath.Join(*outputDir, "issues.json"), issues)

	fmt.Printf("Generated %d orders, %d BOM lines, %d issue lines in %s\n",
		len(orders), len(boms), len(issues), *outputDir)
}

func writeJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Fatalf("write %s: %v", path, err)
	}
}
