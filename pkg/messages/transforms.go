package messages

import (
	"context"

	"github.com/polyswarm/go-polyswarmd/pkg/metadata"
)

// transform maps one source log name to its wire event name and payload
// extraction function. The table is closed: events not listed here are not
// part of the streaming surface.
type transform struct {
	wire string
	fn   func(ctx context.Context, c *Codec, a eventArgs) (map[string]interface{}, error)
}

var transforms = map[string]transform{
	"FeesUpdated":           {wire: "fee_update", fn: feesUpdated},
	"WindowsUpdated":        {wire: "window_update", fn: windowsUpdated},
	"NewBounty":             {wire: "bounty", fn: newBounty},
	"NewAssertion":          {wire: "assertion", fn: newAssertion},
	"RevealedAssertion":     {wire: "reveal", fn: revealedAssertion},
	"NewVote":               {wire: "vote", fn: newVote},
	"QuorumReached":         {wire: "quorum", fn: quorumReached},
	"SettledBounty":         {wire: "settled_bounty", fn: settledBounty},
	"Deprecated":            {wire: "deprecated", fn: deprecated},
	"Undeprecated":          {wire: "undeprecated", fn: undeprecated},
	"InitializedChannel":    {wire: "initialized_channel", fn: initializedChannel},
	"ClosedAgreement":       {wire: "closed_agreement", fn: closedAgreement},
	"StartedSettle":         {wire: "settle_started", fn: startedSettle},
	"SettleStateChallenged": {wire: "settle_challenged", fn: settleChallenged},
	"Transfer":              {wire: "transfer", fn: transfer},
	"NewWithdrawal":         {wire: "withdrawal", fn: newWithdrawal},
	"NewDeposit":            {wire: "deposit", fn: newDeposit},
	"OpenedAgreement":       {wire: "opened_agreement", fn: openedAgreement},
	"CanceledAgreement":     {wire: "canceled_agreement", fn: canceledAgreement},
	"JoinedAgreement":       {wire: "joined_agreement", fn: joinedAgreement},
}

func feesUpdated(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	bountyFee, err := a.bigInt("bountyFee")
	if err != nil {
		return nil, err
	}
	assertionFee, err := a.bigInt("assertionFee")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"bounty_fee":    bountyFee,
		"assertion_fee": assertionFee,
	}, nil
}

func windowsUpdated(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	reveal, err := a.bigInt("assertionRevealWindow")
	if err != nil {
		return nil, err
	}
	vote, err := a.bigInt("arbiterVoteWindow")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"assertion_reveal_window": reveal,
		"arbiter_vote_window":     vote,
	}, nil
}

func newBounty(ctx context.Context, c *Codec, a eventArgs) (map[string]interface{}, error) {
	guid, err := a.bigInt("guid")
	if err != nil {
		return nil, err
	}
	artifactType, err := a.bigInt("artifactType")
	if err != nil {
		return nil, err
	}
	typeName, err := ArtifactTypeName(artifactType)
	if err != nil {
		return nil, &SchemaError{Event: a.name, Field: "artifactType"}
	}
	author, err := a.address("author")
	if err != nil {
		return nil, err
	}
	amount, err := a.bigInt("amount")
	if err != nil {
		return nil, err
	}
	uri, err := a.str("artifactURI")
	if err != nil {
		return nil, err
	}
	expiration, err := a.bigInt("expirationBlock")
	if err != nil {
		return nil, err
	}
	meta, err := a.str("metadata")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"guid":          GUID(guid),
		"artifact_type": typeName,
		"author":        author,
		"amount":        amount.String(),
		"uri":           uri,
		"expiration":    expiration.String(),
		"metadata":      c.resolve(ctx, meta, metadata.Bounty),
	}, nil
}

func newAssertion(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	guid, err := a.bigInt("bountyGuid")
	if err != nil {
		return nil, err
	}
	author, err := a.address("author")
	if err != nil {
		return nil, err
	}
	index, err := a.bigInt("index")
	if err != nil {
		return nil, err
	}
	bid, err := a.bigSlice("bid")
	if err != nil {
		return nil, err
	}
	bids := make([]string, len(bid))
	for i, b := range bid {
		bids[i] = b.String()
	}
	mask, err := a.bitVector("mask")
	if err != nil {
		return nil, err
	}
	commitment, err := a.bigInt("commitment")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"bounty_guid": GUID(guid),
		"author":      author,
		"index":       index,
		"bid":         bids,
		"mask":        mask,
		"commitment":  commitment.String(),
	}, nil
}

func revealedAssertion(ctx context.Context, c *Codec, a eventArgs) (map[string]interface{}, error) {
	guid, err := a.bigInt("bountyGuid")
	if err != nil {
		return nil, err
	}
	author, err := a.address("author")
	if err != nil {
		return nil, err
	}
	index, err := a.bigInt("index")
	if err != nil {
		return nil, err
	}
	nonce, err := a.bigInt("nonce")
	if err != nil {
		return nil, err
	}
	verdicts, err := a.bitVector("verdicts")
	if err != nil {
		return nil, err
	}
	meta, err := a.str("metadata")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"bounty_guid": GUID(guid),
		"author":      author,
		"index":       index,
		"nonce":       nonce.String(),
		"verdicts":    verdicts,
		"metadata":    c.resolve(ctx, meta, metadata.Assertion),
	}, nil
}

func newVote(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	guid, err := a.bigInt("bountyGuid")
	if err != nil {
		return nil, err
	}
	voter, err := a.address("voter")
	if err != nil {
		return nil, err
	}
	votes, err := a.bitVector("votes")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"bounty_guid": GUID(guid),
		"voter":       voter,
		"votes":       votes,
	}, nil
}

func quorumReached(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	guid, err := a.bigInt("bountyGuid")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"bounty_guid": GUID(guid)}, nil
}

func settledBounty(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	guid, err := a.bigInt("bountyGuid")
	if err != nil {
		return nil, err
	}
	settler, err := a.address("settler")
	if err != nil {
		return nil, err
	}
	payout, err := a.bigInt("payout")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"bounty_guid": GUID(guid),
		"settler":     settler,
		"payout":      payout,
	}, nil
}

func deprecated(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	rollover, err := a.boolean("rollover")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"rollover": rollover}, nil
}

func undeprecated(_ context.Context, _ *Codec, _ eventArgs) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func initializedChannel(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	guid, err := a.bigInt("guid")
	if err != nil {
		return nil, err
	}
	ambassador, err := a.address("ambassador")
	if err != nil {
		return nil, err
	}
	expert, err := a.address("expert")
	if err != nil {
		return nil, err
	}
	msig, err := a.address("msig")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"guid":            GUID(guid),
		"ambassador":      ambassador,
		"expert":          expert,
		"multi_signature": msig,
	}, nil
}

func closedAgreement(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	ambassador, err := a.address("_ambassador")
	if err != nil {
		return nil, err
	}
	expert, err := a.address("_expert")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"ambassador": ambassador,
		"expert":     expert,
	}, nil
}

func startedSettle(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	initiator, err := a.address("initiator")
	if err != nil {
		return nil, err
	}
	return settlePayload(a, "initiator", initiator)
}

func settleChallenged(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	challenger, err := a.address("challenger")
	if err != nil {
		return nil, err
	}
	return settlePayload(a, "challenger", challenger)
}

func settlePayload(a eventArgs, who string, addr string) (map[string]interface{}, error) {
	sequence, err := a.bigInt("sequence")
	if err != nil {
		return nil, err
	}
	end, err := a.bigInt("settlementPeriodEnd")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		who:                 addr,
		"nonce":             sequence,
		"settle_period_end": end,
	}, nil
}

func transfer(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	from, err := a.address("from")
	if err != nil {
		return nil, err
	}
	to, err := a.address("to")
	if err != nil {
		return nil, err
	}
	value, err := a.bigInt("value")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"from":  from,
		"to":    to,
		"value": value.String(),
	}, nil
}

func newWithdrawal(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	to, err := a.address("to")
	if err != nil {
		return nil, err
	}
	value, err := a.bigInt("value")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"to": to, "value": value.String()}, nil
}

func newDeposit(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	from, err := a.address("from")
	if err != nil {
		return nil, err
	}
	value, err := a.bigInt("value")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"from": from, "value": value.String()}, nil
}

func openedAgreement(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	ambassador, err := a.address("_ambassador")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ambassador": ambassador}, nil
}

func canceledAgreement(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	ambassador, err := a.address("_ambassador")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ambassador": ambassador}, nil
}

func joinedAgreement(_ context.Context, _ *Codec, a eventArgs) (map[string]interface{}, error) {
	expert, err := a.address("_expert")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"expert": expert}, nil
}
