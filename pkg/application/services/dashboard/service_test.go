package dashboard

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/vsinha/relief/pkg/application/services/allocation"
	"github.com/vsinha/relief/pkg/application/services/capacity"
	"github.com/vsinha/relief/pkg/application/services/recommendation"
	svctesting "github.com/vsinha/relief/pkg/application/services/testing"
	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/memory"
)

func newDashboard(store *memory.Store) *Service {
	logger := logging.NewTestLogger()
	ledger := capacity.NewLedger(store, capacity.Config{
		Thresholds: entities.DefaultCapacityThresholds(),
		Logger:     logger,
	})
	engine := recommendation.NewEngine(store, recommendation.Config{
		Weights: entities.DefaultUrgencyWeights(),
		Logger:  logger,
	})
	executor := allocation.NewExecutor(store, ledger, allocation.Config{Logger: logger})
	return NewService(store, engine, executor, logger)
}

var _ = Describe("Dashboard service", func() {
	var (
		ctx   context.Context
		store *memory.Store
		svc   *Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = svctesting.BuildHurricaneScenario().Store()
		_, err := capacity.NewLedger(store, capacity.Config{
			Thresholds: entities.DefaultCapacityThresholds(),
			Logger:     logging.NewTestLogger(),
		}).RecomputeAll(ctx, entities.AllScopes())
		Expect(err).NotTo(HaveOccurred())
		svc = newDashboard(store)
	})

	Describe("reads", func() {
		It("lists critical resources most depleted first", func() {
			critical, err := svc.GetCriticalResources(ctx, entities.AllScopes())
			Expect(err).NotTo(HaveOccurred())
			Expect(critical).To(HaveLen(1))
			Expect(critical[0].ID).To(Equal(entities.ResourceID("MED_KIT")))
		})

		It("reports shelter capacity with utilization", func() {
			shelters, err := svc.GetShelterCapacity(ctx, entities.AllScopes())
			Expect(err).NotTo(HaveOccurred())
			Expect(shelters).To(HaveLen(2))

			byID := map[entities.ShelterID]decimal.Decimal{}
			for _, sc := range shelters {
				byID[sc.Shelter.ID] = sc.Utilization
			}
			Expect(byID["NORTH_HS"].String()).To(Equal("0.6"))
			Expect(byID["EAST_GYM"].String()).To(Equal("0.875"))
		})

		It("returns pending requests by priority", func() {
			pending, err := svc.GetPendingRequests(ctx, entities.AllScopes())
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(5))
			Expect(pending[0].Request.ID).To(Equal(entities.RequestID("MED-1")))
			Expect(pending[len(pending)-1].Request.ID).To(Equal(entities.RequestID("MED-2")))
		})

		It("summarizes the disaster", func() {
			summary, err := svc.GetDisasterSummary(ctx, entities.ForDisaster(svctesting.DefaultDisaster))
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Disaster).NotTo(BeNil())
			Expect(summary.ShelterCount).To(Equal(2))
			Expect(summary.TotalCapacity).To(Equal(entities.Quantity(280)))
			Expect(summary.TotalOccupancy).To(Equal(entities.Quantity(190)))
			Expect(summary.PendingRequests).To(Equal(5))
			Expect(summary.CriticalResources).To(Equal(1))
			Expect(summary.SheltersByStatus).To(HaveKeyWithValue("Available", 1))
			Expect(summary.SheltersByStatus).To(HaveKeyWithValue("Near Capacity", 1))
		})

		It("fails the summary for an unknown disaster", func() {
			_, err := svc.GetDisasterSummary(ctx, entities.ForDisaster("NOPE"))
			Expect(domainerrors.IsNotFound(err)).To(BeTrue())
		})

		It("returns one recommendation per open request", func() {
			recs, err := svc.GetResourceRecommendations(ctx, entities.AllScopes())
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(5))
			Expect(recs[0].Request.ID).To(Equal(entities.RequestID("MED-1")))
		})
	})

	Describe("actions", func() {
		It("approves a request in full", func() {
			result := svc.ApproveRequest(ctx, "OCC-3")
			Expect(result.Success).To(BeTrue())
			Expect(result.Message).To(ContainSubstring("request fulfilled"))

			shelter, err := store.GetShelter(ctx, "EAST_GYM")
			Expect(err).NotTo(HaveOccurred())
			Expect(shelter.CurrentOccupancy).To(Equal(entities.Quantity(78)))
			Expect(shelter.Status).To(Equal(entities.ShelterNearCapacity))
		})

		It("executes a partial recommendation", func() {
			result := svc.ExecuteRecommendation(ctx, "WAT-1", 100, "first truck")
			Expect(result.Success).To(BeTrue())
			Expect(result.Request.Status).To(Equal(entities.RequestApproved))
			Expect(result.Message).To(ContainSubstring("200 still outstanding"))
		})

		It("explains a stock conflict and marks it retryable", func() {
			result := svc.ExecuteRecommendation(ctx, "MED-1", 10, "")
			Expect(result.Success).To(BeTrue())

			result = svc.ExecuteRecommendation(ctx, "MED-2", 5, "")
			Expect(result.Success).To(BeFalse())
			Expect(result.Code).To(Equal(domainerrors.CodeStockConflict))
			Expect(result.Retryable).To(BeTrue())
			Expect(result.Message).To(ContainSubstring("only 2 in stock"))
		})

		It("refuses to reject a fulfilled request", func() {
			Expect(svc.ApproveRequest(ctx, "MED-1").Success).To(BeTrue())

			result := svc.RejectRequest(ctx, "MED-1", "duplicate")
			Expect(result.Success).To(BeFalse())
			Expect(result.Code).To(Equal(domainerrors.CodeAlreadyTerminal))
		})

		It("rejects an open request", func() {
			result := svc.RejectRequest(ctx, "WAT-1", "covered by county")
			Expect(result.Success).To(BeTrue())
			Expect(result.Message).To(Equal("Request WAT-1 rejected"))
			Expect(result.Request.Status).To(Equal(entities.RequestRejected))
		})

		It("reports unknown requests", func() {
			result := svc.ApproveRequest(ctx, "NOPE")
			Expect(result.Success).To(BeFalse())
			Expect(result.Code).To(Equal(domainerrors.CodeNotFound))
			Expect(result.Message).To(Equal("Request NOPE could not be processed: request not found (NOPE)."))
		})

		It("names the missing record when it is not the request", func() {
			orphaned := svctesting.NewFixture().
				WithShelter("S1", 10).
				WithRequest("ORPHAN", "S1", "GONE", 5, entities.PriorityHigh, entities.RequestPending).
				Store()
			result := newDashboard(orphaned).ApproveRequest(ctx, "ORPHAN")
			Expect(result.Success).To(BeFalse())
			Expect(result.Code).To(Equal(domainerrors.CodeNotFound))
			Expect(result.Message).To(Equal("Request ORPHAN could not be processed: resource not found (GONE)."))
		})

		It("reports invalid quantities", func() {
			result := svc.ExecuteRecommendation(ctx, "WAT-1", 0, "")
			Expect(result.Success).To(BeFalse())
			Expect(result.Code).To(Equal(domainerrors.CodeInvalidInput))
		})
	})
})
