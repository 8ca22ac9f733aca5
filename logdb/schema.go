// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

const logTableSchema = `
CREATE TABLE IF NOT EXISTS log (
	seq INTEGER PRIMARY KEY NOT NULL,
	blockHash BLOB(32) NOT NULL,
	blockTime INTEGER NOT NULL,
	txHash BLOB(32) NOT NULL,
	txIndex INTEGER NOT NULL,
	accountID INTEGER NOT NULL,
	serviceFlag INTEGER NOT NULL,
	data BLOB
);

CREATE INDEX IF NOT EXISTS prefix_log_account ON log(accountID);
CREATE INDEX IF NOT EXISTS prefix_log_tx ON log(txHash);
CREATE INDEX IF NOT EXISTS prefix_log_flag ON log(serviceFlag);
`
