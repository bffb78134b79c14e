package chain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/seedpool/seedpool-backend/internal/domain"
)

// Event signatures
var (
	// PoolCreated(bytes32 indexed idHash, uint256 indexed poolId, address indexed owner)
	poolCreatedEventSignature = crypto.Keccak256Hash([]byte("PoolCreated(bytes32,uint256,address)"))

	// DonationReceived(uint256 indexed poolId, address indexed donor, address indexed token, uint256 amount, string message, bool recurring)
	donationReceivedEventSignature = crypto.Keccak256Hash([]byte("DonationReceived(uint256,address,address,uint256,string,bool)"))

	// DonationFailed(uint256 indexed poolId, address indexed donor, address indexed token, uint256 amount)
	donationFailedEventSignature = crypto.Keccak256Hash([]byte("DonationFailed(uint256,address,address,uint256)"))

	// SubscriptionCreated(uint256 indexed subscriptionId, uint256 indexed poolId, address indexed subscriber,
	//                     address token, uint256 amount, uint256 interval, uint256 remainingPayments,
	//                     uint256 nextPaymentTime, uint256 expiresAt)
	subscriptionCreatedEventSignature = crypto.Keccak256Hash([]byte("SubscriptionCreated(uint256,uint256,address,address,uint256,uint256,uint256,uint256,uint256)"))

	// SubscriptionPaymentSucceeded(uint256 indexed subscriptionId, address indexed subscriber, uint256 remainingPayments, uint256 nextPaymentTime)
	subscriptionPaymentSucceededEventSignature = crypto.Keccak256Hash([]byte("SubscriptionPaymentSucceeded(uint256,address,uint256,uint256)"))

	// SubscriptionPaymentFailed(uint256 indexed subscriptionId, address indexed subscriber)
	subscriptionPaymentFailedEventSignature = crypto.Keccak256Hash([]byte("SubscriptionPaymentFailed(uint256,address)"))

	// Unsubscribed(uint256 indexed subscriptionId, address indexed subscriber)
	unsubscribedEventSignature = crypto.Keccak256Hash([]byte("Unsubscribed(uint256,address)"))
)

// eventTopics is the topic0 filter set for the subscription query
var eventTopics = []common.Hash{
	poolCreatedEventSignature,
	donationReceivedEventSignature,
	donationFailedEventSignature,
	subscriptionCreatedEventSignature,
	subscriptionPaymentSucceededEventSignature,
	subscriptionPaymentFailedEventSignature,
	unsubscribedEventSignature,
}

// donationReceivedABI unpacks the non-indexed DonationReceived arguments
// (the message is a dynamic string, so raw data slicing does not work)
var donationReceivedABI = mustABI(`[{"anonymous":false,"inputs":[
	{"indexed":true,"name":"poolId","type":"uint256"},
	{"indexed":true,"name":"donor","type":"address"},
	{"indexed":true,"name":"token","type":"address"},
	{"indexed":false,"name":"amount","type":"uint256"},
	{"indexed":false,"name":"message","type":"string"},
	{"indexed":false,"name":"recurring","type":"bool"}],
	"name":"DonationReceived","type":"event"}]`)

func mustABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// DecodeLog parses a contract log into its ChainEvent variant. Logs with an
// unknown topic0 are skipped (nil, nil); malformed logs for a known topic
// are a decode error.
func DecodeLog(chainID domain.Chain, vLog types.Log, observedAt time.Time) (domain.ChainEvent, error) {
	if len(vLog.Topics) == 0 {
		return nil, fmt.Errorf("log without topics: tx %s", vLog.TxHash.Hex())
	}

	meta := domain.EventMeta{
		Chain:       chainID,
		TxHash:      vLog.TxHash.Hex(),
		LogIndex:    vLog.Index,
		BlockNumber: vLog.BlockNumber,
		Timestamp:   observedAt,
	}

	switch vLog.Topics[0] {
	case poolCreatedEventSignature:
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("invalid PoolCreated event: expected 4 topics, got %d", len(vLog.Topics))
		}
		return domain.PoolCreated{
			EventMeta:     meta,
			IDHash:        vLog.Topics[1].Hex(),
			OnChainPoolID: topicUint64(vLog.Topics[2]),
			OwnerAddress:  topicAddress(vLog.Topics[3]),
		}, nil

	case donationReceivedEventSignature:
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("invalid DonationReceived event: expected 4 topics, got %d", len(vLog.Topics))
		}
		unpacked, err := donationReceivedABI.Unpack("DonationReceived", vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack DonationReceived data: %w", err)
		}
		amount, ok1 := unpacked[0].(*big.Int)
		message, ok2 := unpacked[1].(string)
		recurring, ok3 := unpacked[2].(bool)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("unexpected DonationReceived argument types")
		}
		return domain.DonationReceived{
			EventMeta:     meta,
			OnChainPoolID: topicUint64(vLog.Topics[1]),
			DonorAddress:  topicAddress(vLog.Topics[2]),
			TokenAddress:  topicAddress(vLog.Topics[3]),
			Amount:        amount.String(),
			Message:       message,
			Recurring:     recurring,
		}, nil

	case donationFailedEventSignature:
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("invalid DonationFailed event: expected 4 topics, got %d", len(vLog.Topics))
		}
		if len(vLog.Data) < 32 {
			return nil, fmt.Errorf("invalid DonationFailed event: insufficient data")
		}
		return domain.DonationFailed{
			EventMeta:     meta,
			OnChainPoolID: topicUint64(vLog.Topics[1]),
			DonorAddress:  topicAddress(vLog.Topics[2]),
			TokenAddress:  topicAddress(vLog.Topics[3]),
			Amount:        new(big.Int).SetBytes(vLog.Data[0:32]).String(),
		}, nil

	case subscriptionCreatedEventSignature:
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("invalid SubscriptionCreated event: expected 4 topics, got %d", len(vLog.Topics))
		}
		// Data layout: token, amount, interval, remainingPayments, nextPaymentTime, expiresAt
		if len(vLog.Data) < 6*32 {
			return nil, fmt.Errorf("invalid SubscriptionCreated event: insufficient data")
		}
		return domain.SubscriptionCreated{
			EventMeta:             meta,
			OnChainSubscriptionID: topicUint64(vLog.Topics[1]),
			OnChainPoolID:         topicUint64(vLog.Topics[2]),
			SubscriberAddress:     topicAddress(vLog.Topics[3]),
			TokenAddress:          common.BytesToAddress(vLog.Data[0:32]).Hex(),
			Amount:                new(big.Int).SetBytes(vLog.Data[32:64]).String(),
			IntervalSeconds:       new(big.Int).SetBytes(vLog.Data[64:96]).Uint64(),
			RemainingPayments:     new(big.Int).SetBytes(vLog.Data[96:128]).Uint64(),
			NextPaymentTime:       new(big.Int).SetBytes(vLog.Data[128:160]).Int64(),
			ExpiresAt:             new(big.Int).SetBytes(vLog.Data[160:192]).Int64(),
		}, nil

	case subscriptionPaymentSucceededEventSignature:
		if len(vLog.Topics) != 3 {
			return nil, fmt.Errorf("invalid SubscriptionPaymentSucceeded event: expected 3 topics, got %d", len(vLog.Topics))
		}
		if len(vLog.Data) < 2*32 {
			return nil, fmt.Errorf("invalid SubscriptionPaymentSucceeded event: insufficient data")
		}
		return domain.SubscriptionPaymentSucceeded{
			EventMeta:             meta,
			OnChainSubscriptionID: topicUint64(vLog.Topics[1]),
			SubscriberAddress:     topicAddress(vLog.Topics[2]),
			RemainingPayments:     new(big.Int).SetBytes(vLog.Data[0:32]).Uint64(),
			NextPaymentTime:       new(big.Int).SetBytes(vLog.Data[32:64]).Int64(),
		}, nil

	case subscriptionPaymentFailedEventSignature:
		if len(vLog.Topics) != 3 {
			return nil, fmt.Errorf("invalid SubscriptionPaymentFailed event: expected 3 topics, got %d", len(vLog.Topics))
		}
		return domain.SubscriptionPaymentFailed{
			EventMeta:             meta,
			OnChainSubscriptionID: topicUint64(vLog.Topics[1]),
			SubscriberAddress:     topicAddress(vLog.Topics[2]),
		}, nil

	case unsubscribedEventSignature:
		if len(vLog.Topics) != 3 {
			return nil, fmt.Errorf("invalid Unsubscribed event: expected 3 topics, got %d", len(vLog.Topics))
		}
		return domain.Unsubscribed{
			EventMeta:             meta,
			OnChainSubscriptionID: topicUint64(vLog.Topics[1]),
			SubscriberAddress:     topicAddress(vLog.Topics[2]),
		}, nil

	default:
		// Other events from the same contract are not ours to index
		return nil, nil
	}
}

func topicUint64(t common.Hash) uint64 {
	return new(big.Int).SetBytes(t.Bytes()).Uint64()
}

func topicAddress(t common.Hash) string {
	return common.BytesToAddress(t.Bytes()).Hex()
}
