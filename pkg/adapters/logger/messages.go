package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Harness progress (info)
		"Starting %d decoder instance(s)":    "%d 個のデコーダインスタンスを開始します",
		"All decoders bound":                 "すべてのデコーダがバインドされました",
		"Decoder %d finished: %d frames":     "デコーダ %d が完了: %d フレーム",
		"Run completed in %d ms":             "実行が %d ms で完了しました",
		"Decoder %d tolerated failure: %v":   "デコーダ %d の失敗を許容しました: %v",

		// Driver level
		"decoder error: %v": "デコーダエラー: %v",
	})
}
