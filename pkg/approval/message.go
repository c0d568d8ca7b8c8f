package approval

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/medik/pkg/models"
)

// BuildRequestMessage renders the approval question posted to the reply
// target. The body must contain the exact phrases "approve <short>" and
// "reject <short>" so reply parsing succeeds.
func BuildRequestMessage(a models.PendingApproval, timeout time.Duration) string {
	params, err := json.Marshal(a.ToolParams)
	if err != nil {
		params = []byte("{}")
	}

	var b strings.Builder
	if a.Risk == models.RiskHigh {
		b.WriteString("HIGH RISK ACTION - review carefully before approving\n\n")
	}
	fmt.Fprintf(&b, "Approval required [%s]\n\n", strings.ToUpper(string(a.Risk)))
	fmt.Fprintf(&b, "Action: %s\n", a.Description)
	fmt.Fprintf(&b, "Tool: %s\n", a.ToolName)
	fmt.Fprintf(&b, "Parameters: %s\n\n", params)
	fmt.Fprintf(&b, "Reply with \"approve %s\" to proceed or \"reject %s\" to cancel.\n", a.ShortID(), a.ShortID())
	fmt.Fprintf(&b, "This request expires in %d minutes.", int(timeout.Minutes()))
	return b.String()
}
