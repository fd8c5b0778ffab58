package moderation

// DefaultBannedWords is seeded into an empty word table.
var DefaultBannedWords = []string{
	// advertising
	"تبلیغ",
	"صیغه",
	"لینک",
	"فروش",
	"خرید",
	"کسب درآمد",
	"کار در خانه",
	"کریپتو",
	"بیت کوین",
	// profanity
	"کون",
	"کونی",
	"کونکش",
	"کون گشاد",
	"کص",
	"کصکش",
	"کص کش",
	"کیر",
	"دودول",
	"خایه",
	"گوه",
	"عن",
	"کون کش",
	"کس کش",
	"کسکش",
	"بیشرف",
	"قهبه",
	"جنده",
	"ناموس",
	"بیناموس",
	"بی ناموس",
	"گاییدم",
	"گایید",
	"کیرم",
	"کیرت",
	"گاییدن",
	"گایش",
	"مادرتو",
	"ننتو",
	"مامانتو",
	"حرومزاده",
	"حرامزاده",
	"حروم زاده",
	"حرام زاده",
	"بیخایه",
	"بی خایه",
}
