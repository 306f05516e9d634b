package notify

// Event - ключ шаблона уведомления в каталоге.
type Event string

const (
	ProjectSubmittedOwner   Event = "project.submitted.owner"
	ProjectSubmittedAdmin   Event = "project.submitted.admin"
	ProjectApprovedOwner    Event = "project.approved.owner"
	ProjectRejectedOwner    Event = "project.rejected.owner"
	ProjectActivatedOwner   Event = "project.activated.owner"
	ProjectActivatedSellers Event = "project.activated.sellers"
	ProjectCancelledOwner   Event = "project.cancelled.owner"
	ProjectCompletedOwner   Event = "project.completed.owner"
	ProjectCompletedSeller  Event = "project.completed.seller"
	Round1NoBidsOwner       Event = "round1.no_bids.owner"
	Round1ClosedOwner       Event = "round1.closed.owner"
	Round1ShortlistedSeller Event = "round1.shortlisted.seller"
	SelectionExpiredOwner   Event = "selection.expired.owner"
	Round2OpenedOwner       Event = "round2.opened.owner"
	Round2OpenedSeller      Event = "round2.opened.seller"
	Round2NoBidsOwner       Event = "round2.no_bids.owner"
	Round2AwardedOwner      Event = "round2.awarded.owner"
	Round2WonSeller         Event = "round2.won.seller"
	ContractCreatedSeller   Event = "contract.created.seller"
	ContractCreatedCustomer Event = "contract.created.customer"
	ContractCreatedAdmin    Event = "contract.created.admin"
	ContractCustomerSigned  Event = "contract.customer_signed.seller"
	ContractReadyForReview  Event = "contract.ready_for_review.admin"
	ContractApprovedParty   Event = "contract.approved.party"
	ContractCorrectionParty Event = "contract.correction.party"
	ContractCorrectionDone  Event = "contract.correction_resolved.admin"
	ContractExpiredParty    Event = "contract.expired.party"
	ContractCancelledParty  Event = "contract.cancelled.party"
)

// Events перечисляет все события, для которых в каталоге должен быть шаблон.
var Events = []Event{
	ProjectSubmittedOwner, ProjectSubmittedAdmin, ProjectApprovedOwner, ProjectRejectedOwner,
	ProjectActivatedOwner, ProjectActivatedSellers, ProjectCancelledOwner, ProjectCompletedOwner,
	ProjectCompletedSeller, Round1NoBidsOwner, Round1ClosedOwner, Round1ShortlistedSeller,
	SelectionExpiredOwner, Round2OpenedOwner, Round2OpenedSeller, Round2NoBidsOwner, Round2AwardedOwner,
	Round2WonSeller, ContractCreatedSeller, ContractCreatedCustomer, ContractCreatedAdmin,
	ContractCustomerSigned, ContractReadyForReview, ContractApprovedParty, ContractCorrectionParty,
	ContractCorrectionDone, ContractExpiredParty, ContractCancelledParty,
}

// Message - уведомление, сформированное переходом состояния. Отправку выполняет Emitter.
type Message struct {
	Event        Event
	TargetUserID string
	Data         map[string]any
}

// To формирует адресное уведомление.
func To(event Event, userID string, data map[string]any) Message {
	return Message{Event: event, TargetUserID: userID, Data: data}
}

// Broadcast формирует уведомление для группы получателей из каталога.
func Broadcast(event Event, data map[string]any) Message {
	return Message{Event: event, Data: data}
}
