package decision

import (
	"fmt"
	"math"

	"github.com/artpar/autodeploy/internal/core/domain"
)

// Monthly base rates in USD, by topology.
var baseRates = map[domain.Topology]float64{
	domain.TopologyContainerService:  25,
	domain.TopologyKubernetesCluster: 73,
	domain.TopologyServerless:        5,
	domain.TopologyStaticSite:        1,
}

// Single VM rates follow the smallest catalog size of each provider.
var vmRates = map[domain.Provider]float64{
	domain.ProviderAWS: 8.76,
	domain.ProviderGCP: 5.32,
}

const (
	fallbackRate      = 10
	databaseIncrement = 15
	cdnIncrement      = 5
	storageIncrement  = 1
)

// estimateCost returns a rough monthly estimate and its rationale line.
func estimateCost(plan domain.Plan) (domain.Cost, string) {
	amount, ok := baseRates[plan.Topology]
	if plan.Topology == domain.TopologySingleVM {
		amount, ok = vmRates[plan.Provider]
	}
	if !ok {
		amount = fallbackRate
	}

	amount += databaseIncrement * float64(plan.CountKind(domain.KindManagedDatabase))
	amount += cdnIncrement * float64(plan.CountKind(domain.KindCdnDistribution))
	if plan.Topology != domain.TopologyStaticSite {
		amount += storageIncrement * float64(plan.CountKind(domain.KindObjectStorage))
	}

	amount = math.Round(amount*100) / 100
	return domain.Cost{Amount: amount, Currency: "USD"},
		fmt.Sprintf("Estimated monthly cost: $%.2f USD (estimate only, actual charges depend on usage)", amount)
}
