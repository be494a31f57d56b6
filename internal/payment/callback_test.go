package payment_test

import (
	"testing"

	"survey_wallet/internal/domain"
	"survey_wallet/internal/payment"

	"github.com/stretchr/testify/require"
)

const stkSuccessBody = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

const stkFailureBody = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user"
    }
  }
}`

const b2cSuccessBody = `{
  "Result": {
    "ResultType": 0,
    "ResultCode": 0,
    "ResultDesc": "The service request is processed successfully.",
    "OriginatorConversationID": "10571-7910404-1",
    "ConversationID": "AG_20191219_00004e48cf7e3533f581",
    "TransactionID": "NLJ41HAY6Q",
    "ResultParameters": {
      "ResultParameter": [
        {"Key": "TransactionAmount", "Value": 10},
        {"Key": "TransactionReceipt", "Value": "NLJ41HAY6Q"},
        {"Key": "ReceiverPartyPublicName", "Value": "254708374149 - John Doe"},
        {"Key": "TransactionCompletedDateTime", "Value": "19.12.2019 11:45:50"}
      ]
    }
  }
}`

func Test_ParseSTKCallback(t *testing.T) {
	t.Run("ok, success with metadata", func(t *testing.T) {
		cb, err := payment.ParseSTKCallback([]byte(stkSuccessBody))
		require.NoError(t, err)
		require.Equal(t, "ws_CO_191220191020363925", cb.CheckoutRequestID)
		require.Equal(t, "29115-34620561-1", cb.MerchantRequestID)
		require.Equal(t, domain.TypeDeposit, cb.Kind)

		res, ok := cb.Result.(payment.Success)
		require.True(t, ok)
		require.Equal(t, 0, res.Code())
		require.Equal(t, "1", res.Amount.String())
		require.Equal(t, "NLJ7RT61SV", *res.ReceiptNumber)
		require.Equal(t, "254708374149", *res.PhoneNumber)
		require.Equal(t, "20191219102115", *res.TransactionDate)
	})

	t.Run("ok, failure code", func(t *testing.T) {
		cb, err := payment.ParseSTKCallback([]byte(stkFailureBody))
		require.NoError(t, err)
		res, ok := cb.Result.(payment.Failure)
		require.True(t, ok)
		require.Equal(t, 1032, res.Code())
		require.Equal(t, "Request cancelled by user", res.Description())
	})

	t.Run("ok, success without metadata", func(t *testing.T) {
		cb, err := payment.ParseSTKCallback([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`))
		require.NoError(t, err)
		res := cb.Result.(payment.Success)
		require.Nil(t, res.Amount)
		require.Nil(t, res.ReceiptNumber)
	})

	t.Run("ok, negative amount is ignored", func(t *testing.T) {
		cb, err := payment.ParseSTKCallback([]byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,
			"CallbackMetadata":{"Item":[{"Name":"Amount","Value":-5}]}}}}`))
		require.NoError(t, err)
		require.Nil(t, cb.Result.(payment.Success).Amount)
	})

	for name, body := range map[string]string{
		"not json":             `<xml/>`,
		"missing body":         `{}`,
		"missing stkCallback":  `{"Body":{}}`,
		"missing checkout id":  `{"Body":{"stkCallback":{"ResultCode":0}}}`,
		"missing result code":  `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`,
		"result code as words": `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":"zero"}}}`,
	} {
		t.Run("fail, "+name, func(t *testing.T) {
			_, err := payment.ParseSTKCallback([]byte(body))
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func Test_ParseB2CResult(t *testing.T) {
	t.Run("ok, success with parameters", func(t *testing.T) {
		cb, err := payment.ParseB2CResult([]byte(b2cSuccessBody))
		require.NoError(t, err)
		require.Equal(t, "AG_20191219_00004e48cf7e3533f581", cb.CheckoutRequestID)
		require.Equal(t, "10571-7910404-1", cb.MerchantRequestID)
		require.Equal(t, domain.TypeWithdrawal, cb.Kind)

		res := cb.Result.(payment.Success)
		require.Equal(t, "10", res.Amount.String())
		require.Equal(t, "NLJ41HAY6Q", *res.ReceiptNumber)
		require.Equal(t, "254708374149", *res.PhoneNumber)
		require.Equal(t, "19.12.2019 11:45:50", *res.TransactionDate)
	})

	t.Run("ok, receipt falls back to transaction id", func(t *testing.T) {
		cb, err := payment.ParseB2CResult([]byte(`{"Result":{"ResultCode":0,"ConversationID":"AG_1","TransactionID":"NLJ41HAY6Q"}}`))
		require.NoError(t, err)
		require.Equal(t, "NLJ41HAY6Q", *cb.Result.(payment.Success).ReceiptNumber)
	})

	t.Run("ok, failure code", func(t *testing.T) {
		cb, err := payment.ParseB2CResult([]byte(`{"Result":{"ResultCode":2001,"ResultDesc":"The initiator information is invalid.","ConversationID":"AG_1"}}`))
		require.NoError(t, err)
		require.Equal(t, 2001, cb.Result.Code())
	})

	t.Run("fail, missing conversation id", func(t *testing.T) {
		_, err := payment.ParseB2CResult([]byte(`{"Result":{"ResultCode":0}}`))
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func Test_ParseUserID(t *testing.T) {
	for in, want := range map[string]uint{"42": 42, " 7 ": 7} {
		got, ok := payment.ParseUserID(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	for _, in := range []string{"", "undefined", "0", "-3", "12abc", "1.5"} {
		_, ok := payment.ParseUserID(in)
		require.False(t, ok, in)
	}
}

func Test_NormalizePhone(t *testing.T) {
	for _, in := range []string{"0712345678", "+254712345678", "254712345678", "0712 345 678", "0112345678"} {
		got, err := payment.NormalizePhone(in)
		require.NoError(t, err, in)
		require.Len(t, got, 12)
	}
	for _, in := range []string{"", "12345", "0812345678", "+1 555 0100"} {
		_, err := payment.NormalizePhone(in)
		require.ErrorIs(t, err, domain.ErrValidation, in)
	}
}
