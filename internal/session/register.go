package session

import (
	"context"
	"fmt"

	"github.com/hitoshi/rxnote/internal/model"
)

// Register は「アカウント作成」リクエストを高々1つの利用可能なセッションへ変換する。
// アカウントが既に存在するケースを許容する冪等登録プロトコル:
//
//  1. アカウント作成を試行する。
//  2. 登録済みエラーの場合、同一認証情報でのサインインに1回だけフォールバックする。
//     ここでのサインイン失敗は「アカウントは存在するが認証情報が不一致」として
//     終端エラーになる（リトライも重複アカウント作成も行わない）。
//  3. その他の作成エラーはそのまま伝播する（終端）。
//  4. 作成成功時は即時サインインを1回試行する。失敗しても作成結果で
//     全体成功を返す（「作成済み・未サインイン」は正常な別個の結果）。
//
// どの分岐でも作成されるアカウントは高々1つ、ネットワーク往復は高々2回。
func Register(ctx context.Context, idp IdentityProvider, email, password string, attrs SignUpAttributes) (*AuthResult, error) {
	created, err := idp.SignUp(ctx, email, password, attrs)
	if err != nil {
		if model.IsAlreadyRegistered(err) {
			signedIn, signInErr := idp.SignInWithPassword(ctx, email, password)
			if signInErr != nil {
				return nil, fmt.Errorf("アカウントは既に存在しますが認証情報が一致しません: %w", signInErr)
			}
			return signedIn, nil
		}
		return nil, err
	}

	signedIn, signInErr := idp.SignInWithPassword(ctx, email, password)
	if signInErr != nil {
		// アカウント作成は成立しているため、作成結果で成功を返す。
		return created, nil
	}

	return signedIn, nil
}
